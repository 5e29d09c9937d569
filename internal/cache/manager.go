package cache

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/canvasrca/internal/kvstore"
)

const (
	// EvictExpired labels removals made by PruneExpired.
	EvictExpired = "expired"

	// EvictOverflow labels removals made by PruneOverflow.
	EvictOverflow = "overflow"
)

// Recorder observes cache activity. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// RecordLookup is called once per Get.
	RecordLookup(ctx context.Context, hit bool)

	// RecordEviction is called after a prune pass removed n records.
	RecordEviction(ctx context.Context, reason string, n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordLookup(context.Context, bool) {}

func (nopRecorder) RecordEviction(context.Context, string, int) {}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used to stamp and age records.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithRecorder attaches a Recorder to the manager.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		m.rec = r
	}
}

// MaintenanceReport describes what a RunMaintenance pass removed.
type MaintenanceReport struct {
	Expired  int `json:"expired"`
	Overflow int `json:"overflow"`
}

// Manager owns the summary records in a kvstore.Store: it reads and writes
// them and applies the retention policy.
//
// The manager never surfaces store failures. A missing or broken store makes
// reads absent and writes no-ops, so callers fall back to regenerating.
type Manager struct {
	store kvstore.Store
	cfg   Config
	log   *slog.Logger
	now   func() time.Time
	rec   Recorder
}

// NewManager creates a manager over store. A nil store behaves as
// kvstore.Disabled.
func NewManager(store kvstore.Store, cfg Config, log *slog.Logger,
	opts ...Option) *Manager {

	if store == nil {
		store = kvstore.Disabled{}
	}
	if log == nil {
		log = slog.Default()
	}

	m := &Manager{
		store: store,
		cfg:   cfg,
		log:   log.With("component", "cache"),
		now:   time.Now,
		rec:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Config returns the retention policy the manager was built with.
func (m *Manager) Config() Config {
	return m.cfg
}

// Get returns the record cached for pageURL, if any.
func (m *Manager) Get(ctx context.Context, pageURL string) fn.Option[Record] {
	key := DeriveKey(pageURL)

	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.storeFailed(ctx, "get", err, "key", key)
		m.rec.RecordLookup(ctx, false)
		return fn.None[Record]()
	}
	if !ok {
		m.rec.RecordLookup(ctx, false)
		return fn.None[Record]()
	}

	rec, err := decodeRecord(key, raw)
	if err != nil {
		m.log.WarnContext(ctx, "Ignoring undecodable cache entry",
			"key", key, "error", err)
		m.rec.RecordLookup(ctx, false)
		return fn.None[Record]()
	}

	m.rec.RecordLookup(ctx, true)

	return fn.Some(rec)
}

// Put stores summary and links for pageURL, replacing whatever was there,
// and stamps the current time. The record is written as a single value so a
// reader sees either the old record or the new one. Only an encoding failure
// is returned; store failures are logged.
func (m *Manager) Put(ctx context.Context, pageURL, summary string,
	links []Link) error {

	rec := Record{
		Key:       DeriveKey(pageURL),
		Summary:   summary,
		Links:     slices.Clone(links),
		Timestamp: m.now(),
	}

	raw, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	if err := m.store.Set(ctx, rec.Key, raw); err != nil {
		m.storeFailed(ctx, "put", err, "key", rec.Key)
		return nil
	}

	m.log.DebugContext(ctx, "Cached summary", "key", rec.Key,
		"links", len(rec.Links))

	return nil
}

// Records returns every record in the namespace ordered by key. Entries that
// cannot be decoded are returned with only their key set.
func (m *Manager) Records(ctx context.Context) []Record {
	entries, err := m.store.List(ctx, NamespacePrefix)
	if err != nil {
		m.storeFailed(ctx, "list", err)
		return nil
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		// Backends already filter by prefix; this guards custom
		// stores that do not.
		if !IsNamespaced(e.Key) {
			continue
		}

		rec, err := decodeRecord(e.Key, e.Value)
		if err != nil {
			m.log.WarnContext(ctx, "Undecodable cache entry",
				"key", e.Key, "error", err)
			rec = Record{Key: e.Key, Links: []Link{}}
		}
		records = append(records, rec)
	}

	return records
}

// PruneExpired removes every record whose timestamp is older than
// maxAgeDays. Records without a timestamp are kept. It returns the number
// of records removed.
func (m *Manager) PruneExpired(ctx context.Context, maxAgeDays int) int {
	if maxAgeDays <= 0 {
		return 0
	}

	cutoff := m.now().UnixMilli() - int64(maxAgeDays)*dayMillis

	var stale []string
	for _, rec := range m.Records(ctx) {
		ts := rec.millis()
		if ts != 0 && ts < cutoff {
			stale = append(stale, rec.Key)
		}
	}

	return m.evict(ctx, EvictExpired, stale)
}

// PruneOverflow keeps only the maxEntries newest records. Records with equal
// timestamps keep their key order, so the choice between them is stable.
// It returns the number of records removed.
func (m *Manager) PruneOverflow(ctx context.Context, maxEntries int) int {
	if maxEntries <= 0 {
		return 0
	}

	records := m.Records(ctx)
	if len(records) <= maxEntries {
		return 0
	}

	slices.SortStableFunc(records, func(a, b Record) int {
		return cmp.Compare(b.millis(), a.millis())
	})

	victims := make([]string, 0, len(records)-maxEntries)
	for _, rec := range records[maxEntries:] {
		victims = append(victims, rec.Key)
	}

	return m.evict(ctx, EvictOverflow, victims)
}

// RunMaintenance applies the configured retention policy: first the age
// limit, then the count limit. It is meant to run once per process start.
func (m *Manager) RunMaintenance(ctx context.Context) MaintenanceReport {
	report := MaintenanceReport{
		Expired:  m.PruneExpired(ctx, m.cfg.MaxAgeDays),
		Overflow: m.PruneOverflow(ctx, m.cfg.MaxEntries),
	}

	m.log.InfoContext(ctx, "Cache maintenance complete",
		"expired", report.Expired, "overflow", report.Overflow,
		"max_age_days", m.cfg.MaxAgeDays,
		"max_entries", m.cfg.MaxEntries)

	return report
}

func (m *Manager) evict(ctx context.Context, reason string,
	keys []string) int {

	if len(keys) == 0 {
		return 0
	}

	if err := m.store.Remove(ctx, keys...); err != nil {
		m.storeFailed(ctx, "remove", err, "reason", reason,
			"count", len(keys))
		return 0
	}

	m.rec.RecordEviction(ctx, reason, len(keys))

	return len(keys)
}

// storeFailed logs a swallowed store error. A disabled store is expected in
// some environments and only logged at debug.
func (m *Manager) storeFailed(ctx context.Context, op string, err error,
	attrs ...any) {

	attrs = append(attrs, "op", op, "error", err)
	if errors.Is(err, kvstore.ErrUnavailable) {
		m.log.DebugContext(ctx, "Cache store unavailable", attrs...)
		return
	}

	m.log.WarnContext(ctx, "Cache store operation failed", attrs...)
}
