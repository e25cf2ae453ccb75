// Package enforce runs the rule book around persistence.
//
// The Enforcer evaluates every applicable "Save" rule before a record is
// written, copies failures onto the record as field or base errors, and
// refuses the write only when an abort-on-fail rule failed. Non-aborting
// failures are reported but do not block persistence.
//
// The active rule book is held behind an atomic pointer. Swap replaces it
// wholesale, so an evaluation always sees one complete, sealed book.
package enforce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solatis/commissar/internal/core/metrics"
	"github.com/solatis/commissar/internal/entity"
	"github.com/solatis/commissar/internal/rules"
	"github.com/solatis/commissar/internal/store"
	"github.com/solatis/commissar/internal/types"
)

// tracerName is the instrumentation scope of enforcement spans.
const tracerName = "github.com/solatis/commissar/internal/enforce"

// EventSave is the event enforced around persistence.
const EventSave = "Save"

// ErrNoStore is returned by Save when the Enforcer has no store.
var ErrNoStore = errors.New("enforcer has no store")

// Enforcer evaluates rules around persistence.
type Enforcer struct {
	book    atomic.Pointer[rules.RuleBook]
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Enforcer) { e.logger = l }
}

// WithMetrics enables instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Enforcer) { e.metrics = m }
}

// WithTracerProvider sets the span source. Default the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Enforcer) { e.tracer = tp.Tracer(tracerName) }
}

// New creates an Enforcer over a sealed book. st may be nil for an
// Enforcer that only checks.
func New(book *rules.RuleBook, st store.Store, opts ...Option) (*Enforcer, error) {
	e := &Enforcer{store: st, logger: slog.Default(), tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Swap(book); err != nil {
		return nil, err
	}
	return e, nil
}

// Book returns the active rule book.
func (e *Enforcer) Book() *rules.RuleBook {
	return e.book.Load()
}

// Swap activates book. Only sealed books are accepted.
func (e *Enforcer) Swap(book *rules.RuleBook) error {
	if book == nil || !book.Sealed() {
		return fmt.Errorf("activate rule book: book must be sealed")
	}
	e.book.Store(book)
	e.metrics.ObserveBook(book)
	e.logger.Info("Rule book activated", "rules", book.Len())
	return nil
}

// Check evaluates the rules for event against ent without side effects on
// ent or the store.
func (e *Enforcer) Check(ctx context.Context, ent entity.Entity, event string) *rules.ResultCard {
	ctx, span := e.tracer.Start(ctx, "rules.evaluate", trace.WithAttributes(
		attribute.String("commissar.type", ent.TypeName()),
		attribute.String("commissar.event", event),
	))
	defer span.End()

	start := time.Now()
	card := e.Book().EvaluateApplicableRules(ctx, ent, event)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int("commissar.failures", len(card.Errors())),
		attribute.Bool("commissar.abort", card.AbortEvent()),
	)

	e.metrics.ObserveEvaluation(event, card, elapsed)
	e.logger.Debug("Evaluated rules",
		"type", ent.TypeName(),
		"id", ent.ID(),
		"event", event,
		"failures", len(card.Errors()),
		"abort", card.AbortEvent(),
		"elapsed", elapsed)
	return card
}

// CheckRecord is Check with rec bound to the store first, so lookup
// predicates see persisted state.
func (e *Enforcer) CheckRecord(ctx context.Context, rec *entity.Record, event string) *rules.ResultCard {
	if e.store != nil {
		rec.Attach(e.store)
	}
	return e.Check(ctx, rec, event)
}

// Save enforces the "Save" rules on rec and persists it unless an
// abort-on-fail rule failed. rec is bound to the store for lookups, and its
// errors are reset and then filled from the card. The returned error wraps
// types.ErrSaveAborted when persistence was refused.
func (e *Enforcer) Save(ctx context.Context, rec *entity.Record) (*rules.ResultCard, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}

	ctx, span := e.tracer.Start(ctx, "enforce.save", trace.WithAttributes(attribute.String("commissar.type", rec.TypeName())))
	defer span.End()

	rec.Attach(e.store)
	rec.Errors().Clear()
	card := e.Check(ctx, rec, EventSave)
	Translate(card, rec)

	if card.AbortEvent() {
		e.metrics.ObserveSave(metrics.SaveRejected)
		e.logger.Info("Save aborted by rules", "record", rec.String(), "errors", rec.Errors().Count())
		span.SetStatus(codes.Error, "aborted by rules")
		return card, fmt.Errorf("%s: %w", rec, types.ErrSaveAborted)
	}

	if err := e.store.Save(ctx, rec); err != nil {
		e.metrics.ObserveSave(metrics.SaveError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return card, fmt.Errorf("save %s: %w", rec, err)
	}

	e.metrics.ObserveSave(metrics.SaveStored)
	return card, nil
}

// UpdateAttributes enforces the "Save" rules against rec with attrs
// applied and saves the result. When the rules abort, rec keeps its old
// field values; its errors still describe the rejected update.
func (e *Enforcer) UpdateAttributes(ctx context.Context, rec *entity.Record, attrs map[string]any) (*rules.ResultCard, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}

	ctx, span := e.tracer.Start(ctx, "enforce.update_attributes", trace.WithAttributes(attribute.String("commissar.type", rec.TypeName())))
	defer span.End()

	rec.Attach(e.store)
	candidate := rec.Clone()
	candidate.Assign(attrs)

	rec.Errors().Clear()
	card := e.Check(ctx, candidate, EventSave)
	Translate(card, rec)

	if card.AbortEvent() {
		e.metrics.ObserveSave(metrics.SaveRejected)
		e.logger.Info("Update aborted by rules", "record", rec.String(), "errors", rec.Errors().Count())
		span.SetStatus(codes.Error, "aborted by rules")
		return card, fmt.Errorf("%s: %w", rec, types.ErrSaveAborted)
	}

	rec.Assign(attrs)
	if err := e.store.Save(ctx, rec); err != nil {
		e.metrics.ObserveSave(metrics.SaveError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		return card, fmt.Errorf("save %s: %w", rec, err)
	}

	e.metrics.ObserveSave(metrics.SaveStored)
	return card, nil
}

// Translate copies every failure on card into sink: onto the failing rule's
// active field, or onto the entity as a whole when the rule has none.
func Translate(card *rules.ResultCard, sink entity.ErrorSink) {
	for _, r := range card.Errors() {
		if field := r.Field(); field != "" {
			sink.AddFieldError(field, r.ErrorMessage())
			continue
		}
		sink.AddBaseError(r.ErrorMessage())
	}
}
