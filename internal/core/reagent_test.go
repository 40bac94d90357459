package core

import (
	"context"
	"reflect"
	"testing"

	"tissuecore/pkg/domain"
)

const (
	plateA = "123456789012345678901234"
	plateB = "000000000000000000000042"
)

func reagentRequest(transfers ...ReagentTransfer) ReagentTransferRequest {
	return ReagentTransferRequest{
		User:               "user1",
		OperationType:      domain.OpReagentTransfer,
		DestinationBarcode: "STAN-100",
		PlateType:          "Dual index TT",
		Transfers:          transfers,
	}
}

func TestReagentTransferCreatesPlatesOnFirstUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := reagentRequest(
		ReagentTransfer{ReagentPlateBarcode: plateA, ReagentSlot: "A1", DestinationAddress: "A1", Concentration: "1.5"},
		ReagentTransfer{ReagentPlateBarcode: plateA, ReagentSlot: "H12", DestinationAddress: "B1"},
	)
	req.WorkNumber = "SGP1"
	res, err := f.svc.Reagents.Transfer(ctx, req)
	mustNoErr(t, err, "transfer")
	if len(res.Operations) != 1 {
		t.Fatalf("expected one operation, got %d", len(res.Operations))
	}
	op := res.Operations[0]
	if op.OperationType.Name != domain.OpReagentTransfer {
		t.Fatalf("operation type = %q", op.OperationType.Name)
	}
	if len(op.Actions) != 2 {
		t.Fatalf("expected one in-place action per sample in the destination, got %d", len(op.Actions))
	}

	f.view(t, func(view domain.TransactionView) {
		plate, ok := view.FindReagentPlate(plateA)
		if !ok {
			t.Fatalf("reagent plate %s not created", plateA)
		}
		if plate.PlateType != "Dual index TT" {
			t.Fatalf("plate type = %q", plate.PlateType)
		}
		for _, addr := range []string{"A1", "H12"} {
			slot, ok := view.FindReagentSlot(plate.ID, domain.MustParseAddress(addr))
			if !ok || !slot.Used {
				t.Fatalf("reagent slot %s: found=%v used=%v", addr, ok, slot.Used)
			}
		}
		if _, ok := view.FindReagentSlot(plate.ID, domain.MustParseAddress("B1")); ok {
			t.Fatalf("slots are only created when used")
		}
		actions := view.ListReagentActions()
		if len(actions) != 2 {
			t.Fatalf("expected 2 reagent actions, got %d", len(actions))
		}
		concentrations := map[string]bool{}
		for _, ra := range actions {
			if ra.OperationID != op.ID {
				t.Fatalf("reagent action linked to %s, want %s", ra.OperationID, op.ID)
			}
			concentrations[ra.Concentration] = true
		}
		if !concentrations["1.50"] || !concentrations[""] {
			t.Fatalf("concentrations = %v, want canonical 1.50 and unset", concentrations)
		}
		work, _ := view.FindWork("SGP1")
		if !reflect.DeepEqual(work.OperationIDs, []string{op.ID}) {
			t.Fatalf("work operations = %v", work.OperationIDs)
		}
	})
}

func TestReagentTransferRejectsRepeatedSlotWithoutRecording(t *testing.T) {
	f := newFixture(t)
	before := f.store.ExportState()

	_, err := f.svc.Reagents.Transfer(context.Background(), reagentRequest(
		ReagentTransfer{ReagentPlateBarcode: plateA, ReagentSlot: "A1", DestinationAddress: "A1"},
		ReagentTransfer{ReagentPlateBarcode: plateA, ReagentSlot: "a1", DestinationAddress: "B1"},
	))
	wantProblems(t, err,
		"Reagent slot "+plateA+" A1 is listed more than once (transfer 1).",
		"Reagent slot "+plateA+" A1 is listed more than once (transfer 2).",
	)
	if !reflect.DeepEqual(before, f.store.ExportState()) {
		t.Fatalf("rejected request changed the store")
	}
	if ops := f.operations(t); len(ops) != 0 {
		t.Fatalf("expected no operations, got %d", len(ops))
	}
}

func TestReagentTransferReportsRepeatsWhenDestinationUnknown(t *testing.T) {
	f := newFixture(t)
	req := reagentRequest(
		ReagentTransfer{ReagentPlateBarcode: plateA, ReagentSlot: "A1", DestinationAddress: "A1"},
		ReagentTransfer{ReagentPlateBarcode: plateA, ReagentSlot: "A1", DestinationAddress: "B1"},
	)
	req.DestinationBarcode = "STAN-NOPE"
	_, err := f.svc.Reagents.Transfer(context.Background(), req)
	wantProblems(t, err,
		`Unknown labware barcode: ["STAN-NOPE"]`,
		"Reagent slot "+plateA+" A1 is listed more than once (transfer 1).",
		"Reagent slot "+plateA+" A1 is listed more than once (transfer 2).",
	)
}

func TestReagentTransferRejectsUsedSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Reagents.Transfer(ctx, reagentRequest(ReagentTransfer{ReagentPlateBarcode: plateA, ReagentSlot: "C3", DestinationAddress: "A1"}))
	mustNoErr(t, err, "first transfer")

	_, err = f.svc.Reagents.Transfer(ctx, reagentRequest(
		ReagentTransfer{ReagentPlateBarcode: plateA, ReagentSlot: "C3", DestinationAddress: "B1"},
		ReagentTransfer{ReagentPlateBarcode: plateB, ReagentSlot: "C3", DestinationAddress: "B1"},
	))
	wantProblems(t, err, "Reagent slot "+plateA+" C3 has already been used.")
	if ops := f.operations(t); len(ops) != 1 {
		t.Fatalf("expected only the first operation, got %d", len(ops))
	}

	req := reagentRequest(ReagentTransfer{ReagentPlateBarcode: plateA, ReagentSlot: "C3", DestinationAddress: "A1"})
	req.DestinationBarcode = "STAN-NOPE"
	_, err = f.svc.Reagents.Transfer(ctx, req)
	wantProblems(t, err,
		`Unknown labware barcode: ["STAN-NOPE"]`,
		"Reagent slot "+plateA+" C3 has already been used.",
	)
}

func TestReagentTransferValidation(t *testing.T) {
	f := newFixture(t)
	req := reagentRequest(
		ReagentTransfer{ReagentPlateBarcode: "12345", ReagentSlot: "A1", DestinationAddress: "A1"},
		ReagentTransfer{ReagentPlateBarcode: plateB, ReagentSlot: "I1", DestinationAddress: "A1"},
		ReagentTransfer{ReagentPlateBarcode: plateB, ReagentSlot: "A2", DestinationAddress: "E1"},
		ReagentTransfer{ReagentPlateBarcode: plateB, ReagentSlot: "A3", DestinationAddress: "A1", Concentration: "1.234"},
	)
	req.PlateType = " "
	_, err := f.svc.Reagents.Transfer(context.Background(), req)
	wantProblems(t, err,
		"No plate type specified.",
		`Reagent plate barcode "12345" is shorter than the minimum length 24.`,
		"Address I1 is not valid in a reagent plate.",
		"Address E1 is not valid in STAN-100.",
		"Invalid concentration: 1.234",
	)

	req = reagentRequest(ReagentTransfer{ReagentPlateBarcode: plateA, ReagentSlot: "A1", DestinationAddress: "A1"})
	req.DestinationBarcode = "STAN-EMPTY"
	_, err = f.svc.Reagents.Transfer(context.Background(), req)
	wantProblems(t, err, "Labware STAN-EMPTY is empty.")
}

func TestReagentTransferChecksPlateType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Reagents.Transfer(ctx, reagentRequest(ReagentTransfer{ReagentPlateBarcode: plateA, ReagentSlot: "A1", DestinationAddress: "A1"}))
	mustNoErr(t, err, "first transfer")

	req := reagentRequest(ReagentTransfer{ReagentPlateBarcode: plateA, ReagentSlot: "A2", DestinationAddress: "A1"})
	req.PlateType = "FFPE"
	_, err = f.svc.Reagents.Transfer(ctx, req)
	wantProblems(t, err, `Reagent plate `+plateA+` is of type "Dual index TT", not "FFPE".`)
}
