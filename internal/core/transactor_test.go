package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"tissuecore/pkg/domain"
)

func TestTransactRollsBackOnError(t *testing.T) {
	f := newFixture(t)
	before := f.store.ExportState()
	boom := errors.New("boom")

	err := f.svc.Transactor().Transact(context.Background(), func(_ context.Context, tx domain.Transaction) error {
		if _, err := tx.CreateWork(domain.Work{WorkNumber: "SGP9"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if !reflect.DeepEqual(before, f.store.ExportState()) {
		t.Fatalf("failed transaction changed the store")
	}
}

func TestNestedTransactJoinsEnclosingTransaction(t *testing.T) {
	f := newFixture(t)
	tr := f.svc.Transactor()
	ctx := context.Background()
	if InTransaction(ctx) {
		t.Fatalf("background context reports a transaction")
	}

	err := tr.Transact(ctx, func(ctx context.Context, outer domain.Transaction) error {
		if !InTransaction(ctx) {
			t.Fatalf("transaction context not marked")
		}
		if _, err := outer.CreateWork(domain.Work{WorkNumber: "SGP9"}); err != nil {
			return err
		}
		err := tr.Transact(ctx, func(ctx context.Context, inner domain.Transaction) error {
			if inner != outer {
				t.Fatalf("nested call opened a new transaction")
			}
			if _, ok := inner.FindWork("SGP9"); !ok {
				t.Fatalf("inner work does not see the outer write")
			}
			return nil
		})
		if err != nil {
			return err
		}
		return tr.View(ctx, func(view domain.TransactionView) error {
			if _, ok := view.FindWork("SGP9"); !ok {
				t.Fatalf("a view inside the transaction does not read its writes")
			}
			return nil
		})
	})
	mustNoErr(t, err, "transact")

	f.view(t, func(view domain.TransactionView) {
		if _, ok := view.FindWork("SGP9"); !ok {
			t.Fatalf("SGP9 not committed")
		}
	})
}

func TestNestedFailureRollsBackWholeRequest(t *testing.T) {
	f := newFixture(t)
	tr := f.svc.Transactor()
	before := f.store.ExportState()
	boom := errors.New("inner")

	err := tr.Transact(context.Background(), func(ctx context.Context, tx domain.Transaction) error {
		if _, err := tx.CreateWork(domain.Work{WorkNumber: "SGP9"}); err != nil {
			return err
		}
		return tr.Transact(ctx, func(context.Context, domain.Transaction) error { return boom })
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected inner error, got %v", err)
	}
	if !reflect.DeepEqual(before, f.store.ExportState()) {
		t.Fatalf("nested failure left writes behind")
	}
}

func TestFinishWithoutPostCommit(t *testing.T) {
	res := Committed{Result: RequestResult{Warnings: []string{"kept"}}}.Finish(context.Background())
	if res.Unstored != nil {
		t.Fatalf("unstored should stay unset")
	}
	if !reflect.DeepEqual(res.Warnings, []string{"kept"}) {
		t.Fatalf("warnings = %q", res.Warnings)
	}
}

func TestRuleViolationRollsBack(t *testing.T) {
	f := newFixture(t)
	before := f.store.ExportState()
	gone := f.labware["STAN-GONE"]

	err := f.svc.Transactor().Transact(context.Background(), func(_ context.Context, tx domain.Transaction) error {
		_, err := tx.UpdateLabware(gone.ID, func(lw *domain.Labware) error {
			lw.Released = false
			return nil
		})
		return err
	})
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(rv.Result.Violations) != 1 || rv.Result.Violations[0].Rule != "terminal_labware" {
		t.Fatalf("unexpected violations %+v", rv.Result.Violations)
	}
	if !reflect.DeepEqual(before, f.store.ExportState()) {
		t.Fatalf("blocked transaction changed the store")
	}
}

func TestOperationWithoutActionsIsBlocked(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Transactor().Transact(context.Background(), func(_ context.Context, tx domain.Transaction) error {
		ot, _ := tx.FindOperationType(domain.OpRelease)
		_, err := tx.CreateOperation(domain.Operation{OperationTypeID: ot.ID})
		return err
	})
	var rv domain.RuleViolationError
	if !errors.As(err, &rv) || rv.Result.Violations[0].Rule != "operation_actions" {
		t.Fatalf("expected operation_actions violation, got %v", err)
	}
	if ops := f.operations(t); len(ops) != 0 {
		t.Fatalf("expected no operations, got %d", len(ops))
	}
}

func TestCreateOperationRequiresActionsAndTransaction(t *testing.T) {
	f := newFixture(t)
	user := domain.User{}
	_, err := f.svc.Operations.CreateOperation(context.Background(), nil, domain.OperationType{Name: "X"}, user, nil)
	if err == nil || !strings.Contains(err.Error(), "requires an active transaction") {
		t.Fatalf("expected transaction error, got %v", err)
	}

	err = f.svc.Transactor().Transact(context.Background(), func(ctx context.Context, tx domain.Transaction) error {
		_, err := f.svc.Operations.CreateOperation(ctx, tx, domain.OperationType{Name: "X"}, user, nil)
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "operation X has no actions") {
		t.Fatalf("expected no actions error, got %v", err)
	}
}
