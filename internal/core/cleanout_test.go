package core

import (
	"context"
	"reflect"
	"testing"

	"tissuecore/internal/infra/persistence/memory"
	"tissuecore/pkg/domain"
)

func TestCleanOutEmptiesSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CleanOut.CleanOut(ctx, CleanOutRequest{User: "user1", Barcode: "STAN-100", Addresses: []string{"a1"}, WorkNumber: "SGP1"})
	mustNoErr(t, err, "clean out")
	if len(res.Operations) != 1 {
		t.Fatalf("expected one operation, got %d", len(res.Operations))
	}
	op := res.Operations[0]
	if op.OperationType.Name != domain.OpCleanOut {
		t.Fatalf("operation type = %q", op.OperationType.Name)
	}
	if len(op.Actions) != 1 || op.Actions[0].SampleID != f.samples["tissue-a"].ID {
		t.Fatalf("unexpected actions %+v", op.Actions)
	}

	lw := f.find(t, "STAN-100")
	a1, _ := lw.Slot(domain.MustParseAddress("A1"))
	b1, _ := lw.Slot(domain.MustParseAddress("B1"))
	if !a1.Empty() || b1.Empty() {
		t.Fatalf("expected only A1 emptied: A1 empty=%v B1 empty=%v", a1.Empty(), b1.Empty())
	}
	if !reflect.DeepEqual(lw, res.Labware[0]) {
		t.Fatalf("result labware differs from committed state")
	}
}

func TestCleanOutValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CleanOut.CleanOut(context.Background(), CleanOutRequest{
		User:      "user1",
		Barcode:   "STAN-100",
		Addresses: []string{"A1", "A1", "C1", "Q1", "x"},
	})
	wantProblems(t, err,
		"Repeated slot A1.",
		"Slot C1 in STAN-100 is already empty.",
		"Address Q1 is not valid in STAN-100.",
		`Invalid address "x".`,
	)

	_, err = f.svc.CleanOut.CleanOut(context.Background(), CleanOutRequest{User: "user1", Barcode: "STAN-100"})
	wantProblems(t, err, "No slots specified.")

	_, err = f.svc.CleanOut.CleanOut(context.Background(), CleanOutRequest{User: "user1", Barcode: "ST", Addresses: []string{"A1"}})
	wantProblems(t, err, `Barcode "ST" is shorter than the minimum length 3.`)
}

func TestFindCleanedOutSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CleanOut.CleanOut(ctx, CleanOutRequest{User: "user1", Barcode: "STAN-100", Addresses: []string{"A1"}})
	mustNoErr(t, err, "clean out")

	lw := f.find(t, "STAN-100")
	slots, err := f.svc.Slots.FindCleanedOutSlots(ctx, []domain.Labware{lw})
	mustNoErr(t, err, "find cleaned out slots")
	if len(slots) != 1 || slots[0].Address != domain.MustParseAddress("A1") {
		t.Fatalf("cleaned out slots = %+v", slots)
	}

	other, err := f.svc.Slots.FindCleanedOutSlots(ctx, []domain.Labware{f.find(t, "STAN-101")})
	mustNoErr(t, err, "find for other labware")
	if len(other) != 0 {
		t.Fatalf("clean-out actions are scoped to their own labware, got %+v", other)
	}

	none, err := f.svc.Slots.FindCleanedOutSlots(ctx, nil)
	mustNoErr(t, err, "find for no labware")
	if len(none) != 0 {
		t.Fatalf("expected nothing for no labware, got %+v", none)
	}
}

func TestFindCleanedOutSlotsWithoutOperationType(t *testing.T) {
	store := memory.NewStore(NewDefaultRulesEngine())
	var lw domain.Labware
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		lw, err = tx.CreateLabware(domain.Labware{Barcode: "STAN-200", LabwareType: slideType})
		return err
	})
	mustNoErr(t, err, "create labware")

	svc := NewService(store)
	slots, err := svc.Slots.FindCleanedOutSlots(context.Background(), []domain.Labware{lw})
	mustNoErr(t, err, "find cleaned out slots")
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %+v", slots)
	}
}
