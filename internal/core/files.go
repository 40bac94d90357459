package core

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"tissuecore/internal/blob"
	"tissuecore/internal/validation"
	"tissuecore/pkg/domain"
)

var errNoBlobStore = errors.New("file storage is not configured")

// FileService keeps files uploaded against works. Contents live in the blob
// store; the StoredFile rows live in the transactional store.
type FileService struct {
	d    *deps
	name validation.Validator[string]
}

// Save stores the contents of r as name on the work. An earlier active file
// with the same name on that work is deactivated. Every problem with the
// request is collected before the blob is written, and the blob is removed
// again if the transaction fails.
func (s *FileService) Save(ctx context.Context, username, workNumber, name, contentType string, r io.Reader) (domain.StoredFile, error) {
	var saved domain.StoredFile
	err := s.d.handle(ctx, "save_file", username, func(ctx context.Context) ([]domain.Operation, error) {
		blobs := s.d.opts.blobs
		if blobs == nil {
			return nil, errNoBlobStore
		}
		name = strings.TrimSpace(name)
		if err := s.d.tx.View(ctx, func(view domain.TransactionView) error {
			return s.validate(view, username, workNumber, name)
		}); err != nil {
			return nil, err
		}

		key := path.Join("works", strings.ToUpper(strings.TrimSpace(workNumber)), uuid.NewString(), name)
		if _, err := blobs.Put(ctx, key, r, blob.PutOptions{ContentType: contentType}); err != nil {
			return nil, err
		}
		err := s.d.tx.Transact(ctx, func(ctx context.Context, tx domain.Transaction) error {
			if err := s.validate(tx, username, workNumber, name); err != nil {
				return err
			}
			user, _ := tx.FindUser(strings.TrimSpace(username))
			work, _ := tx.FindWork(strings.TrimSpace(workNumber))
			for _, f := range tx.ListStoredFiles(work.ID) {
				if f.Active && strings.EqualFold(f.Name, name) {
					if _, err := tx.UpdateStoredFile(f.ID, func(sf *domain.StoredFile) error {
						sf.Active = false
						return nil
					}); err != nil {
						return err
					}
				}
			}
			var err error
			saved, err = tx.CreateStoredFile(domain.StoredFile{
				Name:        name,
				WorkID:      work.ID,
				UserID:      user.ID,
				BlobKey:     key,
				ContentType: contentType,
				Active:      true,
			})
			return err
		})
		if err != nil {
			if _, derr := blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
				s.d.opts.logger.Warnw("orphaned file blob", "key", key, "error", derr)
			}
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return domain.StoredFile{}, err
	}
	return saved, nil
}

// validate reports every problem with the file name, work and user at once.
// It runs again inside the transaction in case either changed meanwhile.
func (s *FileService) validate(view domain.TransactionView, username, workNumber, name string) error {
	var problems domain.Problems
	loadUser(view, username, &problems)
	if strings.TrimSpace(workNumber) == "" {
		problems.Add("No work number specified.")
	} else {
		loadWork(view, workNumber, &problems)
	}
	s.name.Validate(name, &problems)
	return problems.Err("The file could not be saved.")
}

// Lookup returns a stored file and a reader over its contents. The caller
// closes the reader.
func (s *FileService) Lookup(ctx context.Context, id string) (domain.StoredFile, io.ReadCloser, error) {
	if s.d.opts.blobs == nil {
		return domain.StoredFile{}, nil, errNoBlobStore
	}
	var file domain.StoredFile
	err := s.d.tx.View(ctx, func(view domain.TransactionView) error {
		f, ok := view.FindStoredFile(strings.TrimSpace(id))
		if !ok {
			return notFound("file %q", id)
		}
		file = f
		return nil
	})
	if err != nil {
		return domain.StoredFile{}, nil, err
	}
	_, rc, err := s.d.opts.blobs.Get(ctx, file.BlobKey)
	if err != nil {
		return domain.StoredFile{}, nil, err
	}
	return file, rc, nil
}

// List returns the active files of a work.
func (s *FileService) List(ctx context.Context, workNumber string) ([]domain.StoredFile, error) {
	var out []domain.StoredFile
	err := s.d.tx.View(ctx, func(view domain.TransactionView) error {
		work, ok := view.FindWork(strings.TrimSpace(workNumber))
		if !ok {
			return notFound("work %q", workNumber)
		}
		for _, f := range view.ListStoredFiles(work.ID) {
			if f.Active {
				out = append(out, f)
			}
		}
		return nil
	})
	return out, err
}
