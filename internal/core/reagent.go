package core

import (
	"context"
	"strings"

	"tissuecore/internal/validation"
	"tissuecore/pkg/domain"
)

// ReagentPlateLayout is the slot layout of every reagent plate.
var ReagentPlateLayout = domain.LabwareType{Name: "96 well plate", NumRows: 8, NumColumns: 12}

// ReagentTransfer moves the reagent in one reagent plate slot into one slot
// of the destination labware.
type ReagentTransfer struct {
	ReagentPlateBarcode string `json:"reagentPlateBarcode"`
	ReagentSlot         string `json:"reagentSlot"`
	DestinationAddress  string `json:"destinationAddress"`
	Concentration       string `json:"concentration,omitempty"`
}

// ReagentTransferRequest transfers reagents into one piece of labware.
type ReagentTransferRequest struct {
	User               string            `json:"user"`
	OperationType      string            `json:"operationType"`
	WorkNumber         string            `json:"workNumber,omitempty"`
	DestinationBarcode string            `json:"destinationBarcode"`
	PlateType          string            `json:"plateType"`
	Transfers          []ReagentTransfer `json:"transfers"`
}

// ReagentTransferService records reagent transfers.
type ReagentTransferService struct {
	d             *deps
	barcode       barcodeRule
	plateBarcode  validation.Validator[string]
	concentration validation.Sanitiser[string]
}

type reagentLine struct {
	index         int
	plate         string
	address       domain.Address
	destSlot      domain.Slot
	concentration string
}

func (l reagentLine) key() string { return l.plate + " " + l.address.String() }

// Transfer validates the request, creates reagent plates and slots on first
// use, marks the slots used, and records an in-place operation on the
// destination with a reagent action per transfer.
func (s *ReagentTransferService) Transfer(ctx context.Context, req ReagentTransferRequest) (RequestResult, error) {
	var result RequestResult
	err := s.d.handle(ctx, "reagent_transfer", req.User, func(ctx context.Context) ([]domain.Operation, error) {
		err := s.d.tx.Transact(ctx, func(ctx context.Context, tx domain.Transaction) error {
			var problems domain.Problems
			user, _ := loadUser(tx, req.User, &problems)
			opType, _ := loadOperationType(tx, req.OperationType, &problems)
			work, haveWork := loadWork(tx, req.WorkNumber, &problems)
			dest, haveDest := loadSingleLabware(tx, req.DestinationBarcode, s.barcode, &problems)
			if haveDest && dest.Empty() {
				problems.Addf("Labware %s is empty.", dest.Barcode)
			}
			plateType := strings.TrimSpace(req.PlateType)
			if plateType == "" {
				problems.Add("No plate type specified.")
			}
			lines := s.validateTransfers(tx, req.Transfers, dest, haveDest, plateType, &problems)
			if err := problems.Err("The reagent transfer request could not be validated."); err != nil {
				return err
			}

			op, err := s.d.ops.CreateOperationInPlace(ctx, tx, opType, user, dest)
			if err != nil {
				return err
			}
			plates := make(map[string]domain.ReagentPlate)
			for _, line := range lines {
				plate, ok := plates[line.plate]
				if !ok {
					if plate, ok = tx.FindReagentPlate(line.plate); !ok {
						if plate, err = tx.CreateReagentPlate(domain.ReagentPlate{Barcode: line.plate, PlateType: plateType}); err != nil {
							return err
						}
					}
					plates[line.plate] = plate
				}
				slot, ok := tx.FindReagentSlot(plate.ID, line.address)
				if !ok {
					if slot, err = tx.CreateReagentSlot(domain.ReagentSlot{PlateID: plate.ID, Address: line.address}); err != nil {
						return err
					}
				}
				if _, err := tx.UpdateReagentSlot(slot.ID, func(rs *domain.ReagentSlot) error {
					rs.Used = true
					return nil
				}); err != nil {
					return err
				}
				if _, err := tx.CreateReagentAction(domain.ReagentAction{
					OperationID:       op.ID,
					ReagentSlotID:     slot.ID,
					DestinationSlotID: line.destSlot.ID,
					Concentration:     line.concentration,
				}); err != nil {
					return err
				}
			}
			if haveWork {
				if _, err := s.d.ops.LinkWork(ctx, tx, work, []domain.Operation{op}); err != nil {
					return err
				}
			}
			result = RequestResult{Operations: []domain.Operation{op}, Labware: []domain.Labware{dest}}
			return nil
		})
		return result.Operations, err
	})
	if err != nil {
		return RequestResult{}, err
	}
	return result, nil
}

// validateTransfers reports, as separate problem classes, each occurrence of
// a reagent slot listed more than once and each slot consumed by an earlier
// operation.
func (s *ReagentTransferService) validateTransfers(view domain.TransactionView, transfers []ReagentTransfer, dest domain.Labware, haveDest bool, plateType string, problems *domain.Problems) []reagentLine {
	if len(transfers) == 0 {
		problems.Add("No transfers specified.")
		return nil
	}
	var lines []reagentLine
	for i, t := range transfers {
		var concentration string
		if strings.TrimSpace(t.Concentration) != "" {
			concentration, _ = validation.SanitiseInto(s.concentration, t.Concentration, problems)
		}
		plate := strings.TrimSpace(t.ReagentPlateBarcode)
		if !s.plateBarcode.Validate(plate, problems) {
			continue
		}
		addr, ok := parseAddress(t.ReagentSlot, ReagentPlateLayout, "a reagent plate", problems)
		if !ok {
			continue
		}
		line := reagentLine{index: i + 1, plate: plate, address: addr, concentration: concentration}
		if haveDest {
			destAddr, ok := parseAddress(t.DestinationAddress, dest.LabwareType, dest.Barcode, problems)
			if ok {
				line.destSlot, _ = dest.Slot(destAddr)
			}
		}
		lines = append(lines, line)
	}

	counts := make(map[string]int)
	for _, l := range lines {
		counts[l.key()]++
	}
	for _, l := range lines {
		if counts[l.key()] > 1 {
			problems.Addf("Reagent slot %s is listed more than once (transfer %d).", l.key(), l.index)
		}
	}

	checked := make(map[string]bool)
	typeChecked := make(map[string]bool)
	for _, l := range lines {
		if checked[l.key()] {
			continue
		}
		checked[l.key()] = true
		plate, ok := view.FindReagentPlate(l.plate)
		if !ok {
			continue
		}
		if !typeChecked[plate.Barcode] {
			typeChecked[plate.Barcode] = true
			if plateType != "" && !strings.EqualFold(plate.PlateType, plateType) {
				problems.Addf("Reagent plate %s is of type %q, not %q.", plate.Barcode, plate.PlateType, plateType)
			}
		}
		if slot, ok := view.FindReagentSlot(plate.ID, l.address); ok && slot.Used {
			problems.Addf("Reagent slot %s has already been used.", l.key())
		}
	}
	return lines
}
