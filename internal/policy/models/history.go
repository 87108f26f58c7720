package models

import (
	"sort"
	"time"
)

// StatusHistory is an append-only set of status records deduplicated by
// (status, timestamp). Records come back sorted by timestamp ascending.
type StatusHistory struct {
	seen    map[StatusRecord]struct{}
	records []StatusRecord
}

// NewStatusHistory builds a history from persisted records.
func NewStatusHistory(records ...StatusRecord) *StatusHistory {
	h := &StatusHistory{seen: make(map[StatusRecord]struct{}, len(records))}
	for _, r := range records {
		h.Add(r.Status, r.Timestamp)
	}
	return h
}

// Add records a (status, timestamp) pair. Adding an identical pair twice is a
// no-op. The timestamp is stripped of its monotonic reading so equality is by
// wall clock.
func (h *StatusHistory) Add(status Status, timestamp time.Time) {
	record := StatusRecord{Status: status, Timestamp: timestamp.Round(0)}
	if _, ok := h.seen[record]; ok {
		return
	}
	h.seen[record] = struct{}{}
	h.records = append(h.records, record)
}

// Records returns all records sorted by timestamp ascending.
func (h *StatusHistory) Records() []StatusRecord {
	out := make([]StatusRecord, len(h.records))
	copy(out, h.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Len reports the number of distinct records.
func (h *StatusHistory) Len() int { return len(h.records) }

func (h *StatusHistory) clone() *StatusHistory {
	cp := &StatusHistory{
		seen:    make(map[StatusRecord]struct{}, len(h.seen)),
		records: make([]StatusRecord, len(h.records)),
	}
	for k := range h.seen {
		cp.seen[k] = struct{}{}
	}
	copy(cp.records, h.records)
	return cp
}
