package core

import (
	"context"

	"tissuecore/pkg/domain"
)

// PlanLine proposes one section cut from a block into a destination slot.
type PlanLine struct {
	SourceBarcode      string `json:"sourceBarcode"`
	SourceAddress      string `json:"sourceAddress"`
	DestinationBarcode string `json:"destinationBarcode"`
	DestinationAddress string `json:"destinationAddress"`
}

// PlanRequest proposes a sectioning operation.
type PlanRequest struct {
	User          string     `json:"user"`
	OperationType string     `json:"operationType"`
	Lines         []PlanLine `json:"lines"`
}

// PlanResult is the stored plan with the labware it touches.
type PlanResult struct {
	Plan    domain.PlanOperation `json:"plan"`
	Labware []domain.Labware     `json:"labware"`
}

// PlanService records section plans, reserving a section number per line.
type PlanService struct {
	d       *deps
	barcode barcodeRule
}

type planLine struct {
	src SlotRef
	dst SlotRef
}

// Plan validates the request and stores a plan whose actions carry newly
// reserved section numbers.
func (s *PlanService) Plan(ctx context.Context, req PlanRequest) (PlanResult, error) {
	var result PlanResult
	err := s.d.handle(ctx, "plan", req.User, func(ctx context.Context) ([]domain.Operation, error) {
		return nil, s.d.tx.Transact(ctx, func(ctx context.Context, tx domain.Transaction) error {
			var problems domain.Problems
			user, _ := loadUser(tx, req.User, &problems)
			opType, haveType := loadOperationType(tx, req.OperationType, &problems)
			if haveType && !opType.Has(domain.FlagSourceIsBlock) {
				problems.Addf("Operation type %s cannot be used for section planning.", opType.Name)
			}
			lines := s.validateLines(tx, req.Lines, &problems)
			if err := problems.Err("The plan request could not be validated."); err != nil {
				return err
			}

			plan := domain.PlanOperation{OperationTypeID: opType.ID, UserID: user.ID, Planned: s.d.opts.clock.Now()}
			touched := make(map[string]bool)
			var touchedOrder []string
			for _, line := range lines {
				section, err := BlockService{}.NextSection(ctx, tx, line.src.Slot)
				if err != nil {
					return err
				}
				plan.Actions = append(plan.Actions, domain.PlanAction{
					SourceLabwareID:      line.src.Labware.ID,
					SourceSlotID:         line.src.Slot.ID,
					DestinationLabwareID: line.dst.Labware.ID,
					DestinationSlotID:    line.dst.Slot.ID,
					SampleID:             *line.src.Slot.BlockSampleID,
					NewSection:           &section,
				})
				for _, id := range []string{line.src.Labware.ID, line.dst.Labware.ID} {
					if !touched[id] {
						touched[id] = true
						touchedOrder = append(touchedOrder, id)
					}
				}
			}
			stored, err := tx.CreatePlan(plan)
			if err != nil {
				return err
			}
			result = PlanResult{Plan: stored}
			for _, id := range touchedOrder {
				lw, _ := tx.FindLabware(id)
				result.Labware = append(result.Labware, lw)
			}
			return nil
		})
	})
	if err != nil {
		return PlanResult{}, err
	}
	return result, nil
}

func (s *PlanService) validateLines(view domain.TransactionView, lines []PlanLine, problems *domain.Problems) []planLine {
	if len(lines) == 0 {
		problems.Add("No plan lines specified.")
		return nil
	}
	labware := make(map[string]domain.Labware)
	resolve := func(raw string) (domain.Labware, bool) {
		bc, ok := s.barcode.sanitiser.Sanitise(raw)
		if !ok {
			problems.Addf("Invalid barcode: %q", raw)
			return domain.Labware{}, false
		}
		if lw, seen := labware[bc]; seen {
			return lw, lw.ID != "" && !lw.Terminal()
		}
		lw, ok := loadSingleLabware(view, bc, s.barcode, problems)
		labware[bc] = lw
		return lw, ok
	}

	var out []planLine
	for _, line := range lines {
		src, srcOK := resolve(line.SourceBarcode)
		dst, dstOK := resolve(line.DestinationBarcode)
		if !srcOK || !dstOK {
			continue
		}
		srcAddr, ok := parseAddress(line.SourceAddress, src.LabwareType, src.Barcode, problems)
		if !ok {
			continue
		}
		srcSlot, _ := src.Slot(srcAddr)
		if !srcSlot.IsBlock() {
			problems.Addf("Slot %s in %s is not a block.", srcAddr, src.Barcode)
			continue
		}
		dstAddr, ok := parseAddress(line.DestinationAddress, dst.LabwareType, dst.Barcode, problems)
		if !ok {
			continue
		}
		dstSlot, _ := dst.Slot(dstAddr)
		if dst.ID == src.ID {
			problems.Addf("Labware %s cannot be both source and destination.", src.Barcode)
			continue
		}
		out = append(out, planLine{src: SlotRef{Labware: src, Slot: srcSlot}, dst: SlotRef{Labware: dst, Slot: dstSlot}})
	}
	return out
}
