package core

import (
	"context"
	"strings"

	"tissuecore/pkg/domain"
)

// DestroyRequest asks for labware to be destroyed for a reason.
type DestroyRequest struct {
	User       string   `json:"user"`
	Barcodes   []string `json:"barcodes"`
	ReasonID   string   `json:"reasonId"`
	WorkNumber string   `json:"workNumber,omitempty"`
}

// DestroyService destroys labware.
type DestroyService struct {
	d       *deps
	barcode barcodeRule
}

// Destroy validates the request, marks the labware destroyed, and records a
// destruction per labware. Labware holding samples also gets a Destroy
// operation; empty labware has nothing to record an action against.
func (s *DestroyService) Destroy(ctx context.Context, req DestroyRequest) (Committed, error) {
	var committed Committed
	err := s.d.handle(ctx, "destroy", req.User, func(ctx context.Context) ([]domain.Operation, error) {
		err := s.d.tx.Transact(ctx, func(ctx context.Context, tx domain.Transaction) error {
			var problems domain.Problems
			user, _ := loadUser(tx, req.User, &problems)
			labware := loadLabware(tx, req.Barcodes, s.barcode, &problems)
			reason, _ := loadReason(tx, req.ReasonID, &problems)
			work, haveWork := loadWork(tx, req.WorkNumber, &problems)
			opType, _ := loadOperationType(tx, domain.OpDestroy, &problems)
			if err := problems.Err("The destruction request could not be validated."); err != nil {
				return err
			}

			result := RequestResult{}
			for _, lw := range labware {
				var opID string
				if !lw.Empty() {
					op, err := s.d.ops.CreateOperationInPlace(ctx, tx, opType, user, lw)
					if err != nil {
						return err
					}
					opID = op.ID
					result.Operations = append(result.Operations, op)
				}
				destroyed, err := tx.UpdateLabware(lw.ID, func(l *domain.Labware) error {
					l.Destroyed = true
					return nil
				})
				if err != nil {
					return err
				}
				if _, err := tx.CreateDestruction(domain.Destruction{
					LabwareID:   lw.ID,
					ReasonID:    reason.ID,
					UserID:      user.ID,
					OperationID: opID,
					Destroyed:   s.d.opts.clock.Now(),
				}); err != nil {
					return err
				}
				result.Labware = append(result.Labware, destroyed)
			}
			if haveWork {
				if _, err := s.d.ops.LinkWork(ctx, tx, work, result.Operations); err != nil {
					return err
				}
			}
			committed = Committed{
				Result: result,
				After:  s.d.unstoreAfter("Destruction", user.Username, barcodesOf(result.Labware)),
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

func loadReason(view domain.TransactionView, id string, problems *domain.Problems) (domain.DestructionReason, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		problems.Add("No destruction reason specified.")
		return domain.DestructionReason{}, false
	}
	reason, ok := view.FindDestructionReason(id)
	if !ok {
		reason, ok = view.FindDestructionReasonByText(id)
	}
	switch {
	case !ok:
		problems.Addf("Unknown destruction reason: %q", id)
	case !reason.Enabled:
		problems.Addf("Destruction reason %q is disabled.", reason.Text)
	default:
		return reason, true
	}
	return domain.DestructionReason{}, false
}
