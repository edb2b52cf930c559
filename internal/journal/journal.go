// Package journal retains the recent outcome history of a run: drops,
// biome transitions, and world-event activity. Retention is bounded by
// record count and by tick age so long runs stay flat; ticks come from the
// simulation clock, never the wall clock, keeping the journal identical
// across replays of the same seed and script.
package journal

// Kind labels one outcome record.
type Kind string

const (
	KindDrop       Kind = "drop"
	KindBiome      Kind = "biome"
	KindEventStart Kind = "event_start"
	KindEventEnd   Kind = "event_end"
)

const (
	DefaultCapacity   = 256
	DefaultMaxTickAge = 1200
)

// Record is one retained outcome. Subject names the relic, biome, or event
// instance the record is about; Value carries the kind-specific magnitude
// (drop value, biome rarity, event rarity).
type Record struct {
	Sequence uint64  `json:"sequence"`
	Kind     Kind    `json:"kind"`
	Tick     uint64  `json:"tick"`
	Round    int     `json:"round"`
	Subject  string  `json:"subject"`
	Value    float64 `json:"value,omitempty"`
}

// Stats reports journal counters for diagnostics.
type Stats struct {
	Appended       uint64 `json:"appended"`
	PrunedCapacity uint64 `json:"prunedCapacity"`
	PrunedAge      uint64 `json:"prunedAge"`
	Retained       int    `json:"retained"`
}

// Journal is a single-owner rolling record store. It performs no locking;
// the simulation loop is its only writer.
type Journal struct {
	capacity   int
	maxTickAge uint64

	seq     uint64
	records []Record

	appended       uint64
	prunedCapacity uint64
	prunedAge      uint64
}

// New constructs a journal. Non-positive capacity and zero max tick age use
// the package defaults.
func New(capacity int, maxTickAge uint64) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxTickAge == 0 {
		maxTickAge = DefaultMaxTickAge
	}
	return &Journal{capacity: capacity, maxTickAge: maxTickAge}
}

// Append stamps the record with the next sequence number, stores it, and
// prunes anything the retention rules no longer cover. The stamped record
// is returned. Ticks are assumed non-decreasing across appends.
func (j *Journal) Append(record Record) Record {
	if j == nil {
		return record
	}
	j.seq++
	record.Sequence = j.seq
	j.records = append(j.records, record)
	j.appended++
	j.pruneByAge(record.Tick)
	j.pruneByCapacity()
	return record
}

func (j *Journal) pruneByAge(now uint64) {
	if now <= j.maxTickAge {
		return
	}
	cutoff := now - j.maxTickAge
	drop := 0
	for drop < len(j.records) && j.records[drop].Tick < cutoff {
		drop++
	}
	if drop == 0 {
		return
	}
	j.prunedAge += uint64(drop)
	j.records = append(j.records[:0], j.records[drop:]...)
}

func (j *Journal) pruneByCapacity() {
	if len(j.records) <= j.capacity {
		return
	}
	drop := len(j.records) - j.capacity
	j.prunedCapacity += uint64(drop)
	j.records = append(j.records[:0], j.records[drop:]...)
}

// Snapshot returns a copy of the retained records in append order.
func (j *Journal) Snapshot() []Record {
	if j == nil || len(j.records) == 0 {
		return nil
	}
	out := make([]Record, len(j.records))
	copy(out, j.records)
	return out
}

// Drain returns the retained records and clears the store. The sequence
// counter keeps advancing across drains.
func (j *Journal) Drain() []Record {
	if j == nil || len(j.records) == 0 {
		return nil
	}
	out := make([]Record, len(j.records))
	copy(out, j.records)
	j.records = j.records[:0]
	return out
}

// Len reports the number of retained records.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return len(j.records)
}

// Stats returns the journal counters.
func (j *Journal) Stats() Stats {
	if j == nil {
		return Stats{}
	}
	return Stats{
		Appended:       j.appended,
		PrunedCapacity: j.prunedCapacity,
		PrunedAge:      j.prunedAge,
		Retained:       len(j.records),
	}
}
