package core

import (
	"context"
	"strings"

	"tissuecore/pkg/domain"
)

// ReleaseRequest asks for labware to be released to a destination and recipient.
type ReleaseRequest struct {
	User        string   `json:"user"`
	Barcodes    []string `json:"barcodes"`
	Destination string   `json:"destination"`
	Recipient   string   `json:"recipient"`
	WorkNumber  string   `json:"workNumber,omitempty"`
}

// ReleaseService releases labware from the lab.
type ReleaseService struct {
	d       *deps
	barcode barcodeRule
}

// Release validates the request, marks the labware released, and records one
// Release operation and release record per labware. The returned Committed
// carries the step that unstores the labware.
func (s *ReleaseService) Release(ctx context.Context, req ReleaseRequest) (Committed, error) {
	var committed Committed
	err := s.d.handle(ctx, "release", req.User, func(ctx context.Context) ([]domain.Operation, error) {
		err := s.d.tx.Transact(ctx, func(ctx context.Context, tx domain.Transaction) error {
			var problems domain.Problems
			user, _ := loadUser(tx, req.User, &problems)
			labware := loadLabware(tx, req.Barcodes, s.barcode, &problems)
			var empty []string
			for _, lw := range labware {
				if lw.Empty() {
					empty = append(empty, lw.Barcode)
				}
			}
			if len(empty) > 0 {
				problems.Addf("Cannot release empty labware: %s", domain.QuoteList(empty))
			}
			destination, _ := loadDestination(tx, req.Destination, &problems)
			recipient, _ := loadRecipient(tx, req.Recipient, &problems)
			work, haveWork := loadWork(tx, req.WorkNumber, &problems)
			opType, _ := loadOperationType(tx, domain.OpRelease, &problems)
			if err := problems.Err("The release request could not be validated."); err != nil {
				return err
			}

			result := RequestResult{}
			for _, lw := range labware {
				op, err := s.d.ops.CreateOperationInPlace(ctx, tx, opType, user, lw)
				if err != nil {
					return err
				}
				released, err := tx.UpdateLabware(lw.ID, func(l *domain.Labware) error {
					l.Released = true
					return nil
				})
				if err != nil {
					return err
				}
				if _, err := tx.CreateRelease(domain.Release{
					LabwareID:     lw.ID,
					DestinationID: destination.ID,
					RecipientID:   recipient.ID,
					UserID:        user.ID,
					OperationID:   op.ID,
					Released:      op.Performed,
				}); err != nil {
					return err
				}
				result.Operations = append(result.Operations, op)
				result.Labware = append(result.Labware, released)
			}
			if haveWork {
				if _, err := s.d.ops.LinkWork(ctx, tx, work, result.Operations); err != nil {
					return err
				}
			}
			committed = Committed{
				Result: result,
				After:  s.d.unstoreAfter("Release", user.Username, barcodesOf(result.Labware)),
			}
			return nil
		})
		return committed.Result.Operations, err
	})
	if err != nil {
		return Committed{}, err
	}
	return committed, nil
}

func loadDestination(view domain.TransactionView, name string, problems *domain.Problems) (domain.ReleaseDestination, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		problems.Add("No release destination specified.")
		return domain.ReleaseDestination{}, false
	}
	d, ok := view.FindReleaseDestination(name)
	switch {
	case !ok:
		problems.Addf("Unknown release destination: %q", name)
	case !d.Enabled:
		problems.Addf("Release destination %q is disabled.", d.Name)
	default:
		return d, true
	}
	return domain.ReleaseDestination{}, false
}

func loadRecipient(view domain.TransactionView, username string, problems *domain.Problems) (domain.ReleaseRecipient, bool) {
	username = strings.TrimSpace(username)
	if username == "" {
		problems.Add("No release recipient specified.")
		return domain.ReleaseRecipient{}, false
	}
	r, ok := view.FindReleaseRecipient(username)
	switch {
	case !ok:
		problems.Addf("Unknown release recipient: %q", username)
	case !r.Enabled:
		problems.Addf("Release recipient %q is disabled.", r.Username)
	default:
		return r, true
	}
	return domain.ReleaseRecipient{}, false
}
