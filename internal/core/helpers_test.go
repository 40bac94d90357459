package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"tissuecore/internal/infra/persistence/memory"
	"tissuecore/pkg/domain"
)

var (
	testNow   = time.Date(2024, 5, 14, 10, 30, 0, 0, time.UTC)
	slideType = domain.LabwareType{Name: "Slide", NumRows: 4, NumColumns: 1}
	tubeType  = domain.LabwareType{Name: "Tube", NumRows: 1, NumColumns: 1}
	plateType = domain.LabwareType{Name: "Plate", NumRows: 2, NumColumns: 3}
)

type fakeUnstorer struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeUnstorer) Unstore(_ context.Context, barcodes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), barcodes...))
	return f.err
}

type issued struct {
	name, heading, body string
}

type fakeNotifier struct {
	mu     sync.Mutex
	issued []issued
}

func (f *fakeNotifier) Issue(_ context.Context, name, heading, body string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = append(f.issued, issued{name: name, heading: heading, body: body})
	return true, nil
}

type auditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *auditLog) Record(_ context.Context, entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *auditLog) last() AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[len(a.entries)-1]
}

type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, level+": "+msg)
}

func (l *recordingLogger) Debugw(msg string, _ ...any) { l.record("debug", msg) }
func (l *recordingLogger) Infow(msg string, _ ...any)  { l.record("info", msg) }
func (l *recordingLogger) Warnw(msg string, _ ...any)  { l.record("warn", msg) }
func (l *recordingLogger) Errorw(msg string, _ ...any) { l.record("error", msg) }

// fixture is a service over a seeded in-memory store.
type fixture struct {
	svc      *Service
	store    *memory.Store
	unstorer *fakeUnstorer
	notifier *fakeNotifier
	audit    *auditLog
	logger   *recordingLogger

	labware     map[string]domain.Labware
	samples     map[string]domain.Sample
	blockSample domain.Sample
	reasonID    string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(NewDefaultRulesEngine(), memory.WithClock(func() time.Time { return testNow })),
		unstorer: &fakeUnstorer{},
		notifier: &fakeNotifier{},
		audit:    &auditLog{},
		logger:   &recordingLogger{},
		labware:  make(map[string]domain.Labware),
		samples:  make(map[string]domain.Sample),
	}
	seq := 0
	base := []Option{
		WithClock(ClockFunc(func() time.Time { return testNow })),
		WithUnstorer(f.unstorer),
		WithNotifier(f.notifier),
		WithAuditRecorder(f.audit),
		WithLogger(f.logger),
		WithBarcodeSource(func() string { seq++; return fmt.Sprintf("STAN-N%02d", seq) }),
	}
	f.svc = NewService(f.store, append(base, opts...)...)
	f.seed(t)
	return f
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	_, err := f.store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, u := range []domain.User{
			{Username: "user1", Role: domain.RoleNormal},
			{Username: "admin1", Role: domain.RoleAdmin},
			{Username: "gone", Role: domain.RoleDisabled},
		} {
			if _, err := tx.CreateUser(u); err != nil {
				return err
			}
		}
		for _, ot := range []domain.OperationType{
			{Name: domain.OpRelease, Flags: []domain.OperationTypeFlag{domain.FlagInPlace}},
			{Name: domain.OpDestroy, Flags: []domain.OperationTypeFlag{domain.FlagInPlace}},
			{Name: domain.OpCleanOut, Flags: []domain.OperationTypeFlag{domain.FlagInPlace}},
			{Name: domain.OpSection, Flags: []domain.OperationTypeFlag{domain.FlagSourceIsBlock}},
			{Name: domain.OpTransfer},
			{Name: domain.OpReagentTransfer, Flags: []domain.OperationTypeFlag{domain.FlagInPlace}},
		} {
			if _, err := tx.CreateOperationType(ot); err != nil {
				return err
			}
		}
		for _, d := range []domain.ReleaseDestination{{Name: "Vault", Enabled: true}, {Name: "Old vault"}} {
			if _, err := tx.CreateReleaseDestination(d); err != nil {
				return err
			}
		}
		for _, r := range []domain.ReleaseRecipient{{Username: "recip1", Enabled: true}, {Username: "recip0"}} {
			if _, err := tx.CreateReleaseRecipient(r); err != nil {
				return err
			}
		}
		reason, err := tx.CreateDestructionReason(domain.DestructionReason{Text: "Damaged", Enabled: true})
		if err != nil {
			return err
		}
		f.reasonID = reason.ID
		if _, err := tx.CreateDestructionReason(domain.DestructionReason{Text: "Obsolete"}); err != nil {
			return err
		}
		for _, w := range []domain.Work{{WorkNumber: "SGP1"}, {WorkNumber: "SGP2", Status: domain.WorkPaused}} {
			if _, err := tx.CreateWork(w); err != nil {
				return err
			}
		}

		if err := f.addLabware(tx, "STAN-100", slideType, map[string]string{"A1": "tissue-a", "B1": "tissue-b"}); err != nil {
			return err
		}
		if err := f.addLabware(tx, "STAN-101", slideType, map[string]string{"A1": "tissue-c"}); err != nil {
			return err
		}
		if err := f.addLabware(tx, "STAN-EMPTY", slideType, nil); err != nil {
			return err
		}
		if err := f.addLabware(tx, "STAN-DEST", slideType, nil); err != nil {
			return err
		}
		if err := f.addLabware(tx, "STAN-GONE", slideType, map[string]string{"A1": "tissue-d"}); err != nil {
			return err
		}
		if _, err := tx.UpdateLabware(f.labware["STAN-GONE"].ID, func(lw *domain.Labware) error {
			lw.Released = true
			return nil
		}); err != nil {
			return err
		}
		return f.addBlock(tx, "STAN-BLOCK", 3)
	})
	if err != nil {
		t.Fatalf("seed fixture: %v", err)
	}
	f.refresh(t)
}

func (f *fixture) addLabware(tx domain.Transaction, barcode string, layout domain.LabwareType, contents map[string]string) error {
	lw, err := tx.CreateLabware(domain.Labware{Barcode: barcode, LabwareType: layout})
	if err != nil {
		return err
	}
	for addr, tissue := range contents {
		sample, err := tx.CreateSample(domain.Sample{TissueName: tissue, BioState: "Tissue"})
		if err != nil {
			return err
		}
		f.samples[tissue] = sample
		slot, _ := lw.Slot(domain.MustParseAddress(addr))
		if _, err := tx.UpdateSlot(lw.ID, slot.ID, func(s *domain.Slot) error {
			s.SampleIDs = append(s.SampleIDs, sample.ID)
			return nil
		}); err != nil {
			return err
		}
	}
	f.labware[barcode] = lw
	return nil
}

func (f *fixture) addBlock(tx domain.Transaction, barcode string, highest int) error {
	lw, err := tx.CreateLabware(domain.Labware{Barcode: barcode, LabwareType: tubeType})
	if err != nil {
		return err
	}
	block, err := tx.CreateSample(domain.Sample{TissueName: "block-1", BioState: "Tissue"})
	if err != nil {
		return err
	}
	f.blockSample = block
	_, err = tx.UpdateSlot(lw.ID, lw.Slots[0].ID, func(s *domain.Slot) error {
		s.SampleIDs = []string{block.ID}
		s.BlockSampleID = &block.ID
		s.BlockHighestSection = &highest
		return nil
	})
	f.labware[barcode] = lw
	return err
}

// refresh reloads every fixture labware from committed state.
func (f *fixture) refresh(t *testing.T) {
	t.Helper()
	f.view(t, func(view domain.TransactionView) {
		for bc := range f.labware {
			lw, ok := view.FindLabwareByBarcode(bc)
			if !ok {
				t.Fatalf("fixture labware %s missing", bc)
			}
			f.labware[bc] = lw
		}
	})
}

func (f *fixture) find(t *testing.T, barcode string) domain.Labware {
	t.Helper()
	var lw domain.Labware
	f.view(t, func(view domain.TransactionView) {
		var ok bool
		if lw, ok = view.FindLabwareByBarcode(barcode); !ok {
			t.Fatalf("labware %s not found", barcode)
		}
	})
	return lw
}

func (f *fixture) operations(t *testing.T) []domain.Operation {
	t.Helper()
	var ops []domain.Operation
	f.view(t, func(view domain.TransactionView) { ops = view.ListOperations() })
	return ops
}

func (f *fixture) blockSlot(t *testing.T) domain.Slot {
	t.Helper()
	return f.find(t, "STAN-BLOCK").Slots[0]
}

// view runs fn against committed state.
func (f *fixture) view(t *testing.T, fn func(view domain.TransactionView)) {
	t.Helper()
	if err := f.store.View(context.Background(), func(view domain.TransactionView) error {
		fn(view)
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

// problemsOf unwraps a validation error, failing the test for anything else.
func problemsOf(t *testing.T, err error) []string {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	return verr.Problems
}

func wantProblems(t *testing.T, err error, want ...string) {
	t.Helper()
	if got := problemsOf(t, err); !reflect.DeepEqual(got, want) {
		t.Fatalf("problems = %q, want %q", got, want)
	}
}

func mustNoErr(t *testing.T, err error, what string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
}
