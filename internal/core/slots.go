package core

import (
	"context"

	"tissuecore/pkg/domain"
)

// SlotQueryService answers derived questions about slots.
type SlotQueryService struct {
	tx *Transactor
}

// FindCleanedOutSlots returns the slots of the given labware that are the
// destination of a "Clean out" action recorded against that same labware.
// Slots are returned in labware order, then slot order. No labware, or no
// "Clean out" operation type, yields no slots.
func (s *SlotQueryService) FindCleanedOutSlots(ctx context.Context, labware []domain.Labware) ([]domain.Slot, error) {
	if len(labware) == 0 {
		return nil, nil
	}
	cleaned := make(map[string]bool)
	err := s.tx.View(ctx, func(view domain.TransactionView) error {
		cleanOut, ok := view.FindOperationType(domain.OpCleanOut)
		if !ok {
			return nil
		}
		scope := make(map[string]bool, len(labware))
		for _, lw := range labware {
			scope[lw.ID] = true
		}
		for _, op := range view.ListOperations() {
			if op.OperationTypeID != cleanOut.ID {
				continue
			}
			for _, a := range op.Actions {
				if scope[a.DestinationLabwareID] {
					cleaned[a.DestinationLabwareID+"/"+a.DestinationSlotID] = true
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	var out []domain.Slot
	for _, lw := range labware {
		for _, slot := range lw.Slots {
			if cleaned[lw.ID+"/"+slot.ID] {
				out = append(out, slot)
			}
		}
	}
	return out, nil
}
