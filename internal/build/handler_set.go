package build

import (
	"context"
	"errors"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// HandlerSet is a btclog.Handler that fans records out to several
// handlers, typically the console and the rotating log file. A record is
// delivered to every handler enabled for its level, and a failing handler
// does not stop delivery to the others.
type HandlerSet struct {
	level btclog.Level
	set   []btclogv2.Handler
}

// NewHandlerSet constructs a HandlerSet at the Info level.
func NewHandlerSet(handlers ...btclogv2.Handler) *HandlerSet {
	h := &HandlerSet{
		set:   handlers,
		level: btclog.LevelInfo,
	}
	h.SetLevel(h.level)

	return h
}

// Enabled reports whether any handler accepts records at level.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	return anyEnabled(ctx, level, h.slogHandlers())
}

// Handle dispatches the record to every enabled handler.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Handle(ctx context.Context, record slog.Record) error {
	return handleAll(ctx, record, h.slogHandlers())
}

// WithAttrs is part of the slog.Handler interface.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.reduce(func(s slog.Handler) slog.Handler {
		return s.WithAttrs(attrs)
	})
}

// WithGroup is part of the slog.Handler interface.
func (h *HandlerSet) WithGroup(name string) slog.Handler {
	return h.reduce(func(s slog.Handler) slog.Handler {
		return s.WithGroup(name)
	})
}

// SubSystem returns a set tagged with the given sub-system.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SubSystem(tag string) btclogv2.Handler {
	return h.derive(func(b btclogv2.Handler) btclogv2.Handler {
		return b.SubSystem(tag)
	})
}

// WithPrefix returns a set that prefixes each message.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) WithPrefix(prefix string) btclogv2.Handler {
	return h.derive(func(b btclogv2.Handler) btclogv2.Handler {
		return b.WithPrefix(prefix)
	})
}

// SetLevel changes the level on all underlying handlers.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SetLevel(level btclog.Level) {
	for _, handler := range h.set {
		handler.SetLevel(level)
	}
	h.level = level
}

// Level returns the current logging level.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) Level() btclog.Level {
	return h.level
}

func (h *HandlerSet) slogHandlers() []slog.Handler {
	out := make([]slog.Handler, len(h.set))
	for i, handler := range h.set {
		out[i] = handler
	}

	return out
}

func (h *HandlerSet) derive(
	f func(btclogv2.Handler) btclogv2.Handler) *HandlerSet {

	newSet := &HandlerSet{
		level: h.level,
		set:   make([]btclogv2.Handler, len(h.set)),
	}
	for i, handler := range h.set {
		newSet.set[i] = f(handler)
	}

	return newSet
}

func (h *HandlerSet) reduce(f func(slog.Handler) slog.Handler) *reducedSet {
	newSet := &reducedSet{set: make([]slog.Handler, len(h.set))}
	for i, handler := range h.set {
		newSet.set[i] = f(handler)
	}

	return newSet
}

var _ btclogv2.Handler = (*HandlerSet)(nil)

// reducedSet is the plain slog.Handler produced by WithAttrs and
// WithGroup, which return slog handlers rather than btclog ones.
type reducedSet struct {
	set []slog.Handler
}

// Enabled is part of the slog.Handler interface.
func (r *reducedSet) Enabled(ctx context.Context, level slog.Level) bool {
	return anyEnabled(ctx, level, r.set)
}

// Handle is part of the slog.Handler interface.
func (r *reducedSet) Handle(ctx context.Context, record slog.Record) error {
	return handleAll(ctx, record, r.set)
}

// WithAttrs is part of the slog.Handler interface.
func (r *reducedSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	newSet := &reducedSet{set: make([]slog.Handler, len(r.set))}
	for i, handler := range r.set {
		newSet.set[i] = handler.WithAttrs(attrs)
	}

	return newSet
}

// WithGroup is part of the slog.Handler interface.
func (r *reducedSet) WithGroup(name string) slog.Handler {
	newSet := &reducedSet{set: make([]slog.Handler, len(r.set))}
	for i, handler := range r.set {
		newSet.set[i] = handler.WithGroup(name)
	}

	return newSet
}

var _ slog.Handler = (*reducedSet)(nil)

func anyEnabled(ctx context.Context, level slog.Level,
	set []slog.Handler) bool {

	for _, handler := range set {
		if handler.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func handleAll(ctx context.Context, record slog.Record,
	set []slog.Handler) error {

	var errs []error
	for _, handler := range set {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
