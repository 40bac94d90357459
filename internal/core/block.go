package core

import (
	"context"
	"fmt"

	"tissuecore/pkg/domain"
)

// BlockService issues section numbers for block slots.
type BlockService struct{}

// NextSection reserves and returns the next section number for the block in
// slot. The number exceeds both the highest section recorded on the slot and
// the highest section reserved by any outstanding plan for it. The new value
// is written to the slot inside tx, so a later caller serialised behind this
// transaction observes it.
func (BlockService) NextSection(ctx context.Context, tx domain.Transaction, slot domain.Slot) (int, error) {
	if err := requireTx(ctx, "issuing a section number"); err != nil {
		return 0, err
	}
	next := 0
	_, err := tx.UpdateSlot(slot.LabwareID, slot.ID, func(s *domain.Slot) error {
		if !s.IsBlock() {
			return fmt.Errorf("slot %s is not a block", s.Address)
		}
		recorded := 0
		if s.BlockHighestSection != nil {
			recorded = *s.BlockHighestSection
		}
		next = max(recorded, HighestPlannedSection(tx, s.ID)) + 1
		s.BlockHighestSection = &next
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// HighestPlannedSection returns the largest section number reserved for
// slotID by a plan that no operation has confirmed yet, or zero.
func HighestPlannedSection(view domain.TransactionView, slotID string) int {
	confirmed := confirmedPlans(view)
	highest := 0
	for _, plan := range view.ListPlans() {
		if confirmed[plan.ID] {
			continue
		}
		for _, a := range plan.Actions {
			if a.SourceSlotID == slotID && a.NewSection != nil && *a.NewSection > highest {
				highest = *a.NewSection
			}
		}
	}
	return highest
}

func confirmedPlans(view domain.TransactionView) map[string]bool {
	confirmed := make(map[string]bool)
	for _, op := range view.ListOperations() {
		if op.PlanOperationID != nil {
			confirmed[*op.PlanOperationID] = true
		}
	}
	return confirmed
}
