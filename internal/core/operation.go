package core

import (
	"context"
	"fmt"

	"tissuecore/pkg/domain"
)

// OperationService records operations and their actions. It never validates
// and never opens a transaction of its own: callers have already validated and
// hold the active transaction.
type OperationService struct {
	clock Clock
}

// NewOperationService returns a service stamping operations with clock.
func NewOperationService(clock Clock) *OperationService {
	if clock == nil {
		clock = defaultOptions().clock
	}
	return &OperationService{clock: clock}
}

// SlotRef identifies a slot within a piece of labware.
type SlotRef struct {
	Labware domain.Labware
	Slot    domain.Slot
}

// OperationModifier adjusts an operation before it is stored.
type OperationModifier func(*domain.Operation)

// WithPlan links the operation to the plan it confirms.
func WithPlan(planID string) OperationModifier {
	return func(op *domain.Operation) { op.PlanOperationID = &planID }
}

// CreateOperation stores an operation of opType performed by user, then every
// action with its operation id set, and returns the operation with its actions.
func (s *OperationService) CreateOperation(ctx context.Context, tx domain.Transaction, opType domain.OperationType, user domain.User, actions []domain.Action, mods ...OperationModifier) (domain.Operation, error) {
	if err := requireTx(ctx, "creating an operation"); err != nil {
		return domain.Operation{}, err
	}
	if len(actions) == 0 {
		return domain.Operation{}, fmt.Errorf("operation %s has no actions", opType.Name)
	}
	op := domain.Operation{
		OperationTypeID: opType.ID,
		UserID:          user.ID,
		Performed:       s.clock.Now(),
	}
	for _, mod := range mods {
		mod(&op)
	}
	created, err := tx.CreateOperation(op)
	if err != nil {
		return domain.Operation{}, fmt.Errorf("create operation: %w", err)
	}
	for _, a := range actions {
		a.ID = ""
		a.OperationID = created.ID
		stored, err := tx.CreateAction(a)
		if err != nil {
			return domain.Operation{}, fmt.Errorf("create action: %w", err)
		}
		created.Actions = append(created.Actions, stored)
	}
	return created, nil
}

// CreateOperationForMovement records a single movement of sampleID from src
// to dst.
func (s *OperationService) CreateOperationForMovement(ctx context.Context, tx domain.Transaction, opType domain.OperationType, user domain.User, src, dst SlotRef, sampleID string, mods ...OperationModifier) (domain.Operation, error) {
	return s.CreateOperation(ctx, tx, opType, user, []domain.Action{movement(src, dst, sampleID)}, mods...)
}

// CreateOperationInPlace records one action per sample in every slot of lw,
// with the slot as both source and destination.
func (s *OperationService) CreateOperationInPlace(ctx context.Context, tx domain.Transaction, opType domain.OperationType, user domain.User, lw domain.Labware, mods ...OperationModifier) (domain.Operation, error) {
	var actions []domain.Action
	for _, slot := range lw.Slots {
		ref := SlotRef{Labware: lw, Slot: slot}
		for _, sampleID := range slot.SampleIDs {
			actions = append(actions, movement(ref, ref, sampleID))
		}
	}
	return s.CreateOperation(ctx, tx, opType, user, actions, mods...)
}

// LinkWork appends the operations to the work.
func (s *OperationService) LinkWork(ctx context.Context, tx domain.Transaction, work domain.Work, ops []domain.Operation) (domain.Work, error) {
	if err := requireTx(ctx, "linking a work"); err != nil {
		return domain.Work{}, err
	}
	if len(ops) == 0 {
		return work, nil
	}
	return tx.UpdateWork(work.ID, func(w *domain.Work) error {
		for _, op := range ops {
			w.OperationIDs = append(w.OperationIDs, op.ID)
		}
		return nil
	})
}

func movement(src, dst SlotRef, sampleID string) domain.Action {
	return domain.Action{
		SourceLabwareID:      src.Labware.ID,
		SourceSlotID:         src.Slot.ID,
		DestinationLabwareID: dst.Labware.ID,
		DestinationSlotID:    dst.Slot.ID,
		SampleID:             sampleID,
		SourceSampleID:       sampleID,
	}
}
