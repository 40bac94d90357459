// Package core implements the request services of tissuecore. Every request
// is validated and recorded inside one transaction; requests that take labware
// out of circulation return a post-commit step that unstores it.
package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"tissuecore/internal/infra/persistence/memory"
	"tissuecore/internal/validation"
	"tissuecore/pkg/domain"
)

// Service groups the request services sharing one store and one set of
// collaborators.
type Service struct {
	deps *deps

	Operations     *OperationService
	Blocks         BlockService
	Slots          *SlotQueryService
	Release        *ReleaseService
	Destroy        *DestroyService
	CleanOut       *CleanOutService
	SlotCopy       *SlotCopyService
	Reagents       *ReagentTransferService
	Plans          *PlanService
	ConfirmSection *ConfirmSectionService
	Files          *FileService
	Destinations   *AdminService[domain.ReleaseDestination]
	Recipients     *AdminService[domain.ReleaseRecipient]
	Reasons        *AdminService[domain.DestructionReason]
	OperationTypes *AdminService[domain.OperationType]
}

type deps struct {
	opts  options
	tx    *Transactor
	ops   *OperationService
	store domain.PersistentStore
}

// NewService wires every request service over store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	d := &deps{
		opts:  o,
		tx:    NewTransactor(store, o.logger),
		ops:   NewOperationService(o.clock),
		store: store,
	}
	barcode := newBarcodeRule(validation.LabwareBarcode)
	return &Service{
		deps:           d,
		Operations:     d.ops,
		Slots:          &SlotQueryService{tx: d.tx},
		Release:        &ReleaseService{d: d, barcode: barcode},
		Destroy:        &DestroyService{d: d, barcode: barcode},
		CleanOut:       &CleanOutService{d: d, barcode: barcode},
		SlotCopy:       &SlotCopyService{d: d, barcode: barcode},
		Reagents:       &ReagentTransferService{d: d, barcode: barcode, plateBarcode: validation.ReagentPlateBarcode, concentration: validation.ConcentrationSanitiser()},
		Plans:          &PlanService{d: d, barcode: barcode},
		ConfirmSection: &ConfirmSectionService{d: d},
		Files:          &FileService{d: d, name: validation.FileName},
		Destinations:   NewAdminService(d, DestinationTable()),
		Recipients:     NewAdminService(d, RecipientTable()),
		Reasons:        NewAdminService(d, ReasonTable()),
		OperationTypes: NewAdminService(d, OperationTypeTable()),
	}
}

// NewInMemoryService is a convenience for tests and ephemeral use.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Transactor exposes the transaction boundary shared by the services.
func (s *Service) Transactor() *Transactor { return s.deps.tx }

// Store exposes the underlying store.
func (s *Service) Store() domain.PersistentStore { return s.deps.store }

// AdminUsernames lists users holding the admin role. Notifications go to them.
func (s *Service) AdminUsernames(ctx context.Context) ([]string, error) {
	var out []string
	err := s.deps.tx.View(ctx, func(view domain.TransactionView) error {
		for _, u := range view.ListUsers() {
			if u.Role == domain.RoleAdmin {
				out = append(out, u.Username)
			}
		}
		return nil
	})
	return out, err
}

// FindLabware looks labware up by barcode. A missing barcode is reported as a
// not-found error.
func (s *Service) FindLabware(ctx context.Context, barcodes []string) ([]domain.Labware, error) {
	var out []domain.Labware
	err := s.deps.tx.View(ctx, func(view domain.TransactionView) error {
		var missing []string
		for _, bc := range barcodes {
			lw, ok := view.FindLabwareByBarcode(strings.TrimSpace(bc))
			if !ok {
				missing = append(missing, bc)
				continue
			}
			out = append(out, lw)
		}
		if len(missing) > 0 {
			return notFound("labware %s", domain.QuoteList(missing))
		}
		return nil
	})
	return out, err
}

// handle wraps one request with tracing, metrics, audit and logging.
func (d *deps) handle(ctx context.Context, name, user string, fn func(ctx context.Context) ([]domain.Operation, error)) error {
	started := time.Now()
	ctx, span := d.opts.tracer.Start(ctx, name)
	ops, err := fn(ctx)
	span.End(err)
	d.opts.metrics.Observe(ctx, name, err == nil, time.Since(started))

	entry := AuditEntry{Operation: name, User: user, Timestamp: d.opts.clock.Now()}
	var verr domain.ValidationError
	switch {
	case err == nil:
		entry.Status = AuditStatusSuccess
		for _, op := range ops {
			entry.OperationIDs = append(entry.OperationIDs, op.ID)
		}
		d.opts.logger.Infow("request committed", "request", name, "user", user, "operations", entry.OperationIDs)
	case errors.As(err, &verr):
		entry.Status = AuditStatusRejected
		entry.Problems = len(verr.Problems)
		d.opts.logger.Infow("request rejected", "request", name, "user", user, "problems", len(verr.Problems))
	default:
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		d.opts.logger.Errorw("request failed", "request", name, "user", user, "error", err)
	}
	d.opts.audit.Record(ctx, entry)
	return err
}

func newBarcode() string {
	return "STAN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
