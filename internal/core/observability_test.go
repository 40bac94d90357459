package core

import (
	"bytes"
	"context"
	"encoding/json"
	"expvar"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "release", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "release", false, 3*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Second)

	snap := rec.Snapshot()
	if got := snap.DurationsMS["release"]; math.Abs(got-5.0) > 0.001 {
		t.Fatalf("release duration = %v, want 5ms", got)
	}
	if !reflect.DeepEqual(snap.Results["release"], map[string]int64{"success": 1, "error": 1}) {
		t.Fatalf("release results = %v", snap.Results["release"])
	}
	if len(snap.Results) != 1 {
		t.Fatalf("unnamed operations must be ignored, got %v", snap.Results)
	}

	published := expvar.Get(rec.Name())
	if published == nil {
		t.Fatalf("expvar %q not published", rec.Name())
	}
	if !strings.Contains(published.String(), `"results_total"`) {
		t.Fatalf("published value missing results_total: %s", published.String())
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	rec := NewPrometheusMetricsRecorder()
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(rec); err != nil {
		t.Fatalf("register: %v", err)
	}

	f := newFixture(t, WithMetricsRecorder(MultiMetricsRecorder{rec}))
	_, err := f.svc.CleanOut.CleanOut(context.Background(), CleanOutRequest{User: "user1", Barcode: "STAN-100", Addresses: []string{"A1"}})
	mustNoErr(t, err, "clean out")
	if _, err = f.svc.CleanOut.CleanOut(context.Background(), CleanOutRequest{User: "user1", Barcode: "STAN-404", Addresses: []string{"A1"}}); err == nil {
		t.Fatalf("expected unknown labware to fail")
	}

	expected := `
# HELP tissuecore_requests_total Domain requests handled, by operation and outcome.
# TYPE tissuecore_requests_total counter
tissuecore_requests_total{operation="clean_out",status="error"} 1
tissuecore_requests_total{operation="clean_out",status="success"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "tissuecore_requests_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
	if n := testutil.CollectAndCount(rec.latency); n != 1 {
		t.Fatalf("expected one latency series, got %d", n)
	}
}

func TestJSONTracerWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	f := newFixture(t, WithTracer(tracer))

	if _, err := f.svc.Release.Release(context.Background(), ReleaseRequest{User: "nobody"}); err == nil {
		t.Fatalf("expected release to fail")
	}

	entries := tracer.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one span, got %d", len(entries))
	}
	if entries[0].Operation != "release" || entries[0].Status != "error" || !strings.Contains(entries[0].Error, `Unknown user: "nobody"`) {
		t.Fatalf("unexpected span %+v", entries[0])
	}

	var decoded JSONTraceEntry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode span: %v", err)
	}
	if decoded.Operation != "release" {
		t.Fatalf("decoded operation = %q", decoded.Operation)
	}
}

func TestHandleLogsByOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CleanOut.CleanOut(ctx, CleanOutRequest{User: "user1", Barcode: "STAN-100", Addresses: []string{"B1"}})
	mustNoErr(t, err, "clean out")
	if _, err = f.svc.CleanOut.CleanOut(ctx, CleanOutRequest{User: "user1", Barcode: "STAN-100", Addresses: []string{"B1"}}); err == nil {
		t.Fatalf("expected second clean out to be rejected")
	}

	if want := []string{"info: request committed", "info: request rejected"}; !reflect.DeepEqual(f.logger.messages, want) {
		t.Fatalf("log messages = %q, want %q", f.logger.messages, want)
	}
	if last := f.audit.last(); last.Status != AuditStatusRejected || last.Problems != 1 {
		t.Fatalf("unexpected audit entry %+v", last)
	}
}
