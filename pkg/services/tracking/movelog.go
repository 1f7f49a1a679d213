package tracking

import (
	"time"

	"tourist-overwatch/pkg/ontology"
)

// LogCapacity bounds each tourist's movement log. Older entries are evicted first.
const LogCapacity = 1000

// moveLog is the per-tourist movement history. It is not safe for concurrent
// use on its own; the Engine serialises access.
//
// A tourist's slice may hold up to twice the capacity; only the newest
// capacity entries are visible. Trimming in batches keeps appends amortised O(1).
type moveLog struct {
	capacity int
	entries  map[string][]ontology.LogEntry
	order    []string
}

func newMoveLog(capacity int) *moveLog {
	return &moveLog{
		capacity: capacity,
		entries:  make(map[string][]ontology.LogEntry),
	}
}

func (l *moveLog) append(touristID string, lat, lon float64, status ontology.Status, at time.Time) ontology.LogEntry {
	entry := ontology.LogEntry{
		TouristID: touristID,
		Lat:       lat,
		Lon:       lon,
		Timestamp: at,
		Status:    status,
	}

	log, ok := l.entries[touristID]
	if !ok {
		l.order = append(l.order, touristID)
	}
	log = append(log, entry)
	if len(log) >= 2*l.capacity {
		// copy down so the evicted prefix can be collected
		log = append(make([]ontology.LogEntry, 0, 2*l.capacity), log[len(log)-l.capacity:]...)
	}
	l.entries[touristID] = log

	return entry
}

// visible returns the newest capacity entries of a tourist's log.
func (l *moveLog) visible(touristID string) []ontology.LogEntry {
	log := l.entries[touristID]
	if over := len(log) - l.capacity; over > 0 {
		return log[over:]
	}
	return log
}

func (l *moveLog) get(touristID string) []ontology.LogEntry {
	log := l.visible(touristID)
	out := make([]ontology.LogEntry, len(log))
	copy(out, log)
	return out
}

// each visits every entry, tourists in first-logged order.
func (l *moveLog) each(fn func(ontology.LogEntry)) {
	for _, id := range l.order {
		for _, entry := range l.visible(id) {
			fn(entry)
		}
	}
}

func (l *moveLog) len() int {
	n := 0
	for id := range l.entries {
		n += len(l.visible(id))
	}
	return n
}

func (l *moveLog) clear() {
	l.entries = make(map[string][]ontology.LogEntry)
	l.order = nil
}
