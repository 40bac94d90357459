package core

import (
	"context"
	"strings"

	"tissuecore/pkg/domain"
)

// ConfirmSectionRequest confirms that a plan was carried out.
type ConfirmSectionRequest struct {
	User       string `json:"user"`
	PlanID     string `json:"planId"`
	WorkNumber string `json:"workNumber,omitempty"`
}

// ConfirmSectionService turns an outstanding plan into a recorded operation.
type ConfirmSectionService struct {
	d *deps
}

// Confirm creates a section sample per plan action, places it in the planned
// destination slot, raises the block's recorded highest section, and records
// one operation linked to the plan.
func (s *ConfirmSectionService) Confirm(ctx context.Context, req ConfirmSectionRequest) (RequestResult, error) {
	var result RequestResult
	err := s.d.handle(ctx, "confirm_section", req.User, func(ctx context.Context) ([]domain.Operation, error) {
		err := s.d.tx.Transact(ctx, func(ctx context.Context, tx domain.Transaction) error {
			var problems domain.Problems
			user, _ := loadUser(tx, req.User, &problems)
			work, haveWork := loadWork(tx, req.WorkNumber, &problems)
			plan, havePlan := loadOutstandingPlan(tx, req.PlanID, &problems)
			var opType domain.OperationType
			labware := make(map[string]domain.Labware)
			if havePlan {
				var ok bool
				for _, ot := range tx.ListOperationTypes() {
					if ot.ID == plan.OperationTypeID {
						opType, ok = ot, true
					}
				}
				if !ok {
					problems.Addf("The operation type of plan %s no longer exists.", plan.ID)
				}
				var inactive []string
				for _, a := range plan.Actions {
					for _, id := range []string{a.SourceLabwareID, a.DestinationLabwareID} {
						if _, loaded := labware[id]; loaded {
							continue
						}
						lw, found := tx.FindLabware(id)
						labware[id] = lw
						switch {
						case !found:
							inactive = append(inactive, id)
						case lw.Terminal():
							inactive = append(inactive, lw.Barcode)
						}
					}
				}
				if len(inactive) > 0 {
					problems.Addf("Planned labware is no longer active: %s", domain.QuoteList(inactive))
				}
			}
			if err := problems.Err("The section confirmation could not be validated."); err != nil {
				return err
			}

			var actions []domain.Action
			var order []string
			for _, a := range plan.Actions {
				block, _ := tx.FindSample(a.SampleID)
				sample, err := tx.CreateSample(domain.Sample{
					TissueName: block.TissueName,
					Section:    a.NewSection,
					BioState:   "Tissue",
				})
				if err != nil {
					return err
				}
				dstSlot, err := tx.UpdateSlot(a.DestinationLabwareID, a.DestinationSlotID, func(sl *domain.Slot) error {
					sl.SampleIDs = appendMissing(sl.SampleIDs, sample.ID)
					return nil
				})
				if err != nil {
					return err
				}
				if _, err := tx.UpdateSlot(a.SourceLabwareID, a.SourceSlotID, func(sl *domain.Slot) error {
					if a.NewSection != nil && (sl.BlockHighestSection == nil || *sl.BlockHighestSection < *a.NewSection) {
						highest := *a.NewSection
						sl.BlockHighestSection = &highest
					}
					return nil
				}); err != nil {
					return err
				}
				src := labware[a.SourceLabwareID]
				srcSlot, _ := src.SlotByID(a.SourceSlotID)
				action := movement(SlotRef{Labware: src, Slot: srcSlot}, SlotRef{Labware: labware[a.DestinationLabwareID], Slot: dstSlot}, sample.ID)
				action.SourceSampleID = a.SampleID
				actions = append(actions, action)
				for _, id := range []string{a.SourceLabwareID, a.DestinationLabwareID} {
					if !contains(order, id) {
						order = append(order, id)
					}
				}
			}
			op, err := s.d.ops.CreateOperation(ctx, tx, opType, user, actions, WithPlan(plan.ID))
			if err != nil {
				return err
			}
			if haveWork {
				if _, err := s.d.ops.LinkWork(ctx, tx, work, []domain.Operation{op}); err != nil {
					return err
				}
			}
			result = RequestResult{Operations: []domain.Operation{op}}
			for _, id := range order {
				lw, _ := tx.FindLabware(id)
				result.Labware = append(result.Labware, lw)
			}
			return nil
		})
		return result.Operations, err
	})
	if err != nil {
		return RequestResult{}, err
	}
	return result, nil
}

func loadOutstandingPlan(view domain.TransactionView, id string, problems *domain.Problems) (domain.PlanOperation, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		problems.Add("No plan specified.")
		return domain.PlanOperation{}, false
	}
	plan, ok := view.FindPlan(id)
	if !ok {
		problems.Addf("Unknown plan: %q", id)
		return domain.PlanOperation{}, false
	}
	if confirmedPlans(view)[plan.ID] {
		problems.Addf("Plan %s has already been confirmed.", plan.ID)
		return domain.PlanOperation{}, false
	}
	if len(plan.Actions) == 0 {
		problems.Addf("Plan %s has no actions.", plan.ID)
		return domain.PlanOperation{}, false
	}
	return plan, true
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
