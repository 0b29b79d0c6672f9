package types

import "github.com/vitaliisemenov/datomic-client/pkg/anomalies"

// Db is an immutable database descriptor: it identifies a database value at
// a point in time, optionally narrowed by as-of/since or widened to full
// history. Descriptors are plain values; deriving one never touches the
// network.
type Db struct {
	DatabaseID string
	T          int64
	NextT      int64

	// AsOfT and SinceT are set by AsOf and Since. nil means unset.
	AsOfT  *int64
	SinceT *int64

	// History marks a full-history view.
	History bool

	// NextToken identifies a speculative database value produced by
	// with-db; it is required by With.
	NextToken string
}

// AsOf returns a descriptor narrowed to the database value as of point t.
func (db Db) AsOf(t int64) Db {
	db.AsOfT = &t
	return db
}

// Since returns a descriptor containing only facts added after point t.
func (db Db) Since(t int64) Db {
	db.SinceT = &t
	return db
}

// WithHistory returns a descriptor spanning all assertions and retractions
// across time.
func (db Db) WithHistory() Db {
	db.History = true
	return db
}

// Chunk is one installment of a streamed result. Either Data is set, or
// Anomaly is set and the stream ends.
type Chunk struct {
	Data    []any
	Anomaly *anomalies.Anomaly
}
