package core

import (
	"context"

	"tissuecore/pkg/domain"
)

// CleanOutRequest asks for the listed slots of one piece of labware to be
// emptied.
type CleanOutRequest struct {
	User       string   `json:"user"`
	Barcode    string   `json:"barcode"`
	Addresses  []string `json:"addresses"`
	WorkNumber string   `json:"workNumber,omitempty"`
}

// CleanOutService empties slots, recording a "Clean out" operation.
type CleanOutService struct {
	d       *deps
	barcode barcodeRule
}

// CleanOut records one action per sample removed, with each cleaned slot as
// both source and destination, then empties the slots.
func (s *CleanOutService) CleanOut(ctx context.Context, req CleanOutRequest) (RequestResult, error) {
	var result RequestResult
	err := s.d.handle(ctx, "clean_out", req.User, func(ctx context.Context) ([]domain.Operation, error) {
		err := s.d.tx.Transact(ctx, func(ctx context.Context, tx domain.Transaction) error {
			var problems domain.Problems
			user, _ := loadUser(tx, req.User, &problems)
			opType, _ := loadOperationType(tx, domain.OpCleanOut, &problems)
			work, haveWork := loadWork(tx, req.WorkNumber, &problems)
			lw, haveLabware := loadSingleLabware(tx, req.Barcode, s.barcode, &problems)
			var slots []domain.Slot
			if len(req.Addresses) == 0 {
				problems.Add("No slots specified.")
			}
			if haveLabware {
				seen := make(map[domain.Address]bool)
				for _, raw := range req.Addresses {
					addr, ok := parseAddress(raw, lw.LabwareType, lw.Barcode, &problems)
					if !ok {
						continue
					}
					if seen[addr] {
						problems.Addf("Repeated slot %s.", addr)
						continue
					}
					seen[addr] = true
					slot, _ := lw.Slot(addr)
					if slot.Empty() {
						problems.Addf("Slot %s in %s is already empty.", addr, lw.Barcode)
						continue
					}
					slots = append(slots, slot)
				}
			}
			if err := problems.Err("The clean out request could not be validated."); err != nil {
				return err
			}

			var actions []domain.Action
			for _, slot := range slots {
				ref := SlotRef{Labware: lw, Slot: slot}
				for _, sampleID := range slot.SampleIDs {
					actions = append(actions, movement(ref, ref, sampleID))
				}
			}
			op, err := s.d.ops.CreateOperation(ctx, tx, opType, user, actions)
			if err != nil {
				return err
			}
			for _, slot := range slots {
				if _, err := tx.UpdateSlot(lw.ID, slot.ID, func(sl *domain.Slot) error {
					sl.SampleIDs = nil
					return nil
				}); err != nil {
					return err
				}
			}
			if haveWork {
				if _, err := s.d.ops.LinkWork(ctx, tx, work, []domain.Operation{op}); err != nil {
					return err
				}
			}
			updated, _ := tx.FindLabware(lw.ID)
			result = RequestResult{Operations: []domain.Operation{op}, Labware: []domain.Labware{updated}}
			return nil
		})
		return result.Operations, err
	})
	if err != nil {
		return RequestResult{}, err
	}
	return result, nil
}
