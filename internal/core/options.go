package core

import (
	"context"
	"time"

	"tissuecore/internal/blob"
)

// Logger is the structured logging surface the services use. *zap.SugaredLogger
// satisfies it.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debugw(string, ...any) {}
func (noopLogger) Infow(string, ...any)  {}
func (noopLogger) Warnw(string, ...any)  {}
func (noopLogger) Errorw(string, ...any) {}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder observes the outcome and latency of each request.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan is ended exactly once with the request outcome.
type TraceSpan interface {
	End(err error)
}

// Tracer starts a span per request.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

func (noopSpan) End(error) {}

// AuditStatus is the outcome recorded in an audit entry.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess  AuditStatus = "success"
	AuditStatusRejected AuditStatus = "rejected"
	AuditStatusError    AuditStatus = "error"
)

// AuditEntry describes one handled request.
type AuditEntry struct {
	Operation    string
	User         string
	Status       AuditStatus
	OperationIDs []string
	Problems     int
	Error        string
	Timestamp    time.Time
}

// AuditRecorder receives an entry per handled request.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) {}

// Unstorer removes labware from the external storage system.
type Unstorer interface {
	Unstore(ctx context.Context, barcodes []string) error
}

// Notifier issues an admin notification if it is enabled, reporting whether
// it was sent.
type Notifier interface {
	Issue(ctx context.Context, name, heading, body string) (bool, error)
}

type noopNotifier struct{}

func (noopNotifier) Issue(context.Context, string, string, string) (bool, error) { return false, nil }

// BarcodeSource generates barcodes for labware created by requests.
type BarcodeSource func() string

type options struct {
	logger   Logger
	clock    Clock
	metrics  MetricsRecorder
	tracer   Tracer
	audit    AuditRecorder
	unstorer Unstorer
	notifier Notifier
	blobs    blob.Store
	barcodes BarcodeSource
}

// Option configures a Service.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:   noopLogger{},
		clock:    ClockFunc(func() time.Time { return time.Now().UTC() }),
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
		audit:    noopAudit{},
		notifier: noopNotifier{},
		barcodes: newBarcode,
	}
}

// WithLogger sets the service logger.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMetricsRecorder installs a metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(t Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithAuditRecorder installs an audit recorder.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(o *options) {
		if a != nil {
			o.audit = a
		}
	}
}

// WithUnstorer sets the client used after release and destruction commit.
// Without one, those requests have no post-commit step and their results
// leave unstored unset.
func WithUnstorer(u Unstorer) Option {
	return func(o *options) { o.unstorer = u }
}

// WithNotifier sets the admin notifier.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithBlobStore sets the store holding work file contents.
func WithBlobStore(s blob.Store) Option {
	return func(o *options) { o.blobs = s }
}

// WithBarcodeSource overrides barcode generation for new labware.
func WithBarcodeSource(src BarcodeSource) Option {
	return func(o *options) {
		if src != nil {
			o.barcodes = src
		}
	}
}
