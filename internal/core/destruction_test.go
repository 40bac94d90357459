package core

import (
	"context"
	"reflect"
	"testing"

	"tissuecore/pkg/domain"
)

func TestDestroyRecordsDestructionPerLabware(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	committed, err := f.svc.Destroy.Destroy(ctx, DestroyRequest{
		User:     "user1",
		Barcodes: []string{"STAN-100", "STAN-EMPTY"},
		ReasonID: f.reasonID,
	})
	mustNoErr(t, err, "destroy")

	res := committed.Result
	if len(res.Operations) != 1 {
		t.Fatalf("empty labware has no actions to record; got %d operations", len(res.Operations))
	}
	if res.Operations[0].OperationType.Name != domain.OpDestroy || len(res.Operations[0].Actions) != 2 {
		t.Fatalf("unexpected operation %+v", res.Operations[0])
	}
	if len(res.Labware) != 2 {
		t.Fatalf("expected 2 labware, got %d", len(res.Labware))
	}
	for _, lw := range res.Labware {
		if !lw.Destroyed {
			t.Fatalf("%s not destroyed", lw.Barcode)
		}
	}

	f.view(t, func(view domain.TransactionView) {
		destructions := view.ListDestructions()
		if len(destructions) != 2 {
			t.Fatalf("expected 2 destructions, got %d", len(destructions))
		}
		byLabware := make(map[string]domain.Destruction)
		for _, d := range destructions {
			byLabware[d.LabwareID] = d
			if d.ReasonID != f.reasonID {
				t.Fatalf("destruction reason = %s", d.ReasonID)
			}
		}
		if got := byLabware[f.labware["STAN-100"].ID].OperationID; got != res.Operations[0].ID {
			t.Fatalf("STAN-100 destruction operation = %q", got)
		}
		if got := byLabware[f.labware["STAN-EMPTY"].ID].OperationID; got != "" {
			t.Fatalf("empty labware destruction should have no operation, got %q", got)
		}
	})

	final := committed.Finish(ctx)
	if final.Unstored == nil || !*final.Unstored {
		t.Fatalf("expected unstored=true")
	}
	if !reflect.DeepEqual(f.unstorer.calls, [][]string{{"STAN-100", "STAN-EMPTY"}}) {
		t.Fatalf("unstore calls = %v", f.unstorer.calls)
	}
}

func TestDestroyAcceptsReasonText(t *testing.T) {
	f := newFixture(t)
	committed, err := f.svc.Destroy.Destroy(context.Background(), DestroyRequest{User: "user1", Barcodes: []string{"STAN-101"}, ReasonID: "damaged"})
	mustNoErr(t, err, "destroy")
	if !committed.Result.Labware[0].Destroyed {
		t.Fatalf("STAN-101 not destroyed")
	}
}

func TestDestroyValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Destroy.Destroy(context.Background(), DestroyRequest{
		User:     "gone",
		Barcodes: []string{"STAN-GONE", "STAN-100"},
		ReasonID: "Obsolete",
	})
	wantProblems(t, err,
		`User "gone" is disabled.`,
		`Labware already released: ["STAN-GONE"]`,
		`Destruction reason "Obsolete" is disabled.`,
	)

	_, err = f.svc.Destroy.Destroy(context.Background(), DestroyRequest{User: "user1", Barcodes: []string{"STAN-100"}})
	wantProblems(t, err, "No destruction reason specified.")

	_, err = f.svc.Destroy.Destroy(context.Background(), DestroyRequest{User: "user1", Barcodes: []string{"STAN-100"}, ReasonID: "Spilled"})
	wantProblems(t, err, `Unknown destruction reason: "Spilled"`)
	if f.find(t, "STAN-100").Destroyed {
		t.Fatalf("rejected destroy changed STAN-100")
	}
}

func TestDestroyedLabwareCannotBeReleased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Destroy.Destroy(ctx, DestroyRequest{User: "user1", Barcodes: []string{"STAN-101"}, ReasonID: f.reasonID})
	mustNoErr(t, err, "destroy")

	_, err = f.svc.Release.Release(ctx, ReleaseRequest{User: "user1", Barcodes: []string{"STAN-101"}, Destination: "Vault", Recipient: "recip1"})
	wantProblems(t, err, `Labware already destroyed: ["STAN-101"]`)
}
