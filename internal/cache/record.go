package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Link is an external resource referenced by an assignment, in document
// order.
type Link struct {
	URL   string `json:"url"`
	Text  string `json:"text"`
	Title string `json:"title"`
}

// Record is a cached summary for exactly one page URL.
type Record struct {
	// Key is the derived storage key.
	Key string

	// Summary is the rendered, HTML-safe summary. It is replaced
	// wholesale on regeneration.
	Summary string

	// Links are the external links found next to the assignment. Never
	// nil on a decoded record.
	Links []Link

	// Timestamp is the time of the last write. The zero value means the
	// stored value carried no timestamp.
	Timestamp time.Time
}

// URL returns the page URL the record is keyed by.
func (r Record) URL() string {
	u, _ := URLFromKey(r.Key)
	return u
}

// storedRecord is the JSON shape written to the store.
type storedRecord struct {
	Summary string `json:"summary"`
	Links   []Link `json:"links"`
	TS      int64  `json:"ts"`
}

// encodeRecord serialises r as a single store value.
func encodeRecord(r Record) ([]byte, error) {
	links := r.Links
	if links == nil {
		links = []Link{}
	}

	b, err := json.Marshal(storedRecord{
		Summary: r.Summary,
		Links:   links,
		TS:      r.millis(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode record %q: %w", r.Key, err)
	}

	return b, nil
}

// decodeRecord parses a store value written under key.
func decodeRecord(key string, raw []byte) (Record, error) {
	var s storedRecord
	if err := json.Unmarshal(raw, &s); err != nil {
		return Record{}, fmt.Errorf("decode record %q: %w", key, err)
	}

	links := s.Links
	if links == nil {
		links = []Link{}
	}

	rec := Record{
		Key:     key,
		Summary: s.Summary,
		Links:   links,
	}
	if s.TS != 0 {
		rec.Timestamp = time.UnixMilli(s.TS)
	}

	return rec, nil
}

// millis returns the wire timestamp of r, zero when unset.
func (r Record) millis() int64 {
	if r.Timestamp.IsZero() {
		return 0
	}

	return r.Timestamp.UnixMilli()
}
