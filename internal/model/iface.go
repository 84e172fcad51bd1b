package model

// CycleRecorder receives one record per poll cycle. Implementations must
// not block the caller on storage IO.
type CycleRecorder interface {
	Record(rec CycleRecord)
}

// HistoryReader provides read-only queries on the cycle history.
type HistoryReader interface {
	RecentCycles(limit int) ([]CycleRecord, error)
	OutcomeCounts() (map[Outcome]int64, error)
}

// HistoryWriter provides append-oriented writes of cycle records.
type HistoryWriter interface {
	InsertCycleBatch(records []*CycleRecord) error
}
