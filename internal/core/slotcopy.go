package core

import (
	"context"
	"strings"

	"tissuecore/pkg/domain"
)

// SlotCopyContent moves the samples of one source slot into one slot of the
// new labware.
type SlotCopyContent struct {
	SourceBarcode      string `json:"sourceBarcode"`
	SourceAddress      string `json:"sourceAddress"`
	DestinationAddress string `json:"destinationAddress"`
}

// SlotCopyRequest copies samples into a new piece of labware.
type SlotCopyRequest struct {
	User           string             `json:"user"`
	OperationType  string             `json:"operationType"`
	WorkNumber     string             `json:"workNumber,omitempty"`
	LabwareType    domain.LabwareType `json:"labwareType"`
	Contents       []SlotCopyContent  `json:"contents"`
	DiscardSources bool               `json:"discardSources,omitempty"`
}

// SlotCopyService copies samples from existing labware into new labware.
type SlotCopyService struct {
	d       *deps
	barcode barcodeRule
}

type copyLine struct {
	src SlotRef
	dst domain.Address
}

// Copy validates the request, creates the destination labware, places the
// source samples in it, and records one operation. Sources are discarded when
// requested or when the operation type says so.
func (s *SlotCopyService) Copy(ctx context.Context, req SlotCopyRequest) (RequestResult, error) {
	var result RequestResult
	err := s.d.handle(ctx, "slot_copy", req.User, func(ctx context.Context) ([]domain.Operation, error) {
		err := s.d.tx.Transact(ctx, func(ctx context.Context, tx domain.Transaction) error {
			var problems domain.Problems
			user, _ := loadUser(tx, req.User, &problems)
			opType, haveType := loadOperationType(tx, req.OperationType, &problems)
			if haveType && opType.Has(domain.FlagInPlace) {
				problems.Addf("Operation type %s cannot be used for a slot copy.", opType.Name)
			}
			work, haveWork := loadWork(tx, req.WorkNumber, &problems)
			layout := req.LabwareType
			layoutOK := strings.TrimSpace(layout.Name) != "" && layout.NumRows > 0 && layout.NumColumns > 0
			if !layoutOK {
				problems.Add("A valid destination labware type must be specified.")
			}
			lines := s.validateContents(tx, req.Contents, layout, layoutOK, &problems)
			if err := problems.Err("The slot copy request could not be validated."); err != nil {
				return err
			}

			dest, err := tx.CreateLabware(domain.Labware{Barcode: s.d.opts.barcodes(), LabwareType: layout})
			if err != nil {
				return err
			}
			var actions []domain.Action
			for _, line := range lines {
				dstSlot, _ := dest.Slot(line.dst)
				for _, sampleID := range line.src.Slot.SampleIDs {
					actions = append(actions, movement(line.src, SlotRef{Labware: dest, Slot: dstSlot}, sampleID))
				}
				if _, err := tx.UpdateSlot(dest.ID, dstSlot.ID, func(sl *domain.Slot) error {
					sl.SampleIDs = appendMissing(sl.SampleIDs, line.src.Slot.SampleIDs...)
					return nil
				}); err != nil {
					return err
				}
			}
			op, err := s.d.ops.CreateOperation(ctx, tx, opType, user, actions)
			if err != nil {
				return err
			}
			result.Operations = []domain.Operation{op}

			discard := req.DiscardSources || opType.Has(domain.FlagDiscardSource)
			seen := make(map[string]bool)
			for _, line := range lines {
				srcID := line.src.Labware.ID
				if seen[srcID] {
					continue
				}
				seen[srcID] = true
				src := line.src.Labware
				if discard {
					if src, err = tx.UpdateLabware(srcID, func(l *domain.Labware) error {
						l.Discarded = true
						return nil
					}); err != nil {
						return err
					}
				}
				result.Labware = append(result.Labware, src)
			}
			if haveWork {
				if _, err := s.d.ops.LinkWork(ctx, tx, work, result.Operations); err != nil {
					return err
				}
			}
			dest, _ = tx.FindLabware(dest.ID)
			result.Labware = append(result.Labware, dest)
			return nil
		})
		return result.Operations, err
	})
	if err != nil {
		return RequestResult{}, err
	}
	return result, nil
}

func (s *SlotCopyService) validateContents(view domain.TransactionView, contents []SlotCopyContent, layout domain.LabwareType, layoutOK bool, problems *domain.Problems) []copyLine {
	if len(contents) == 0 {
		problems.Add("No contents specified.")
		return nil
	}
	var (
		lines    []copyLine
		sources  = make(map[string]domain.Labware)
		repeated = make(map[string]bool)
		raw      []string
	)
	for _, c := range contents {
		bc, ok := s.barcode.sanitiser.Sanitise(c.SourceBarcode)
		if ok {
			if _, loaded := sources[bc]; !loaded {
				raw = append(raw, bc)
				sources[bc] = domain.Labware{}
			}
		}
	}
	if len(raw) > 0 {
		for _, lw := range loadLabware(view, raw, s.barcode, problems) {
			sources[lw.Barcode] = lw
		}
	}
	for _, c := range contents {
		bc, ok := s.barcode.sanitiser.Sanitise(c.SourceBarcode)
		if !ok {
			problems.Addf("Invalid barcode: %q", c.SourceBarcode)
			continue
		}
		src := sources[bc]
		if src.ID == "" || src.Terminal() {
			continue
		}
		srcAddr, ok := parseAddress(c.SourceAddress, src.LabwareType, src.Barcode, problems)
		if !ok {
			continue
		}
		srcSlot, _ := src.Slot(srcAddr)
		if srcSlot.Empty() {
			problems.Addf("Slot %s in %s is empty.", srcAddr, src.Barcode)
			continue
		}
		if !layoutOK {
			continue
		}
		dstAddr, ok := parseAddress(c.DestinationAddress, layout, "the new "+layout.Name, problems)
		if !ok {
			continue
		}
		key := src.Barcode + "/" + srcAddr.String() + "/" + dstAddr.String()
		if repeated[key] {
			problems.Addf("Repeated copy from %s slot %s to %s.", src.Barcode, srcAddr, dstAddr)
			continue
		}
		repeated[key] = true
		lines = append(lines, copyLine{src: SlotRef{Labware: src, Slot: srcSlot}, dst: dstAddr})
	}
	return lines
}

func appendMissing(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}
