package types

import "time"

// Consolidation is an immutable record of a clustering merge (C6).
type Consolidation struct {
	ID             string    `json:"id"`
	SummaryID      string    `json:"summary_id"`
	SourceIDs      []string  `json:"source_ids"`
	Strategy       string    `json:"strategy"`
	MemoriesMerged int       `json:"memories_merged"`
	CreatedAt      time.Time `json:"created_at"`
}

// ContradictionStatus is the resolution state of a detected contradiction.
type ContradictionStatus string

const (
	ContradictionPending   ContradictionStatus = "pending"
	ContradictionResolved  ContradictionStatus = "resolved"
	ContradictionDismissed ContradictionStatus = "dismissed"
)

// Contradiction records a detected conflict between two memories. Ordered
// pair identity is symmetric: (a,b) and (b,a) are the same record, stored
// once with the lexically smaller id first.
type Contradiction struct {
	ID          string              `json:"id"`
	MemoryAID   string              `json:"memory_a_id"`
	MemoryBID   string              `json:"memory_b_id"`
	Description string              `json:"description"`
	Status      ContradictionStatus `json:"status"`
	Resolution  string              `json:"resolution,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// AccessLogEntry is one append-only record of a memory being retrieved.
type AccessLogEntry struct {
	ID        string    `json:"id"`
	MemoryID  string    `json:"memory_id"`
	Query     string    `json:"query,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CoRetrieval records that a set of memories appeared together in a single
// ranked result set, keyed by a hash of the query.
type CoRetrieval struct {
	ID         string    `json:"id"`
	QueryHash  string    `json:"query_hash"`
	MemoryIDs  []string  `json:"memory_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecalibrateStats reports before/after importance distribution statistics
// for the recalibrate job.
type RecalibrateStats struct {
	BeforeMean   float64
	AfterMean    float64
	BeforeStdDev float64
	AfterStdDev  float64
	BeforeQuartiles [3]float64
	AfterQuartiles  [3]float64
	Adjusted     int
}

// WeightTuneResult reports the settings nudges the weight-tune job applied.
type WeightTuneResult struct {
	Applied bool
	Reason  string
	Deltas  map[string]float64
}
