// Package model contains domain models passed between layers.
package model

// Watch is a tracked device. Cycles lists the measurement campaigns the
// backend knows about, plus any created locally during the session.
type Watch struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Cycles []int  `json:"cycles"`
}

// Measurement is one time-stamped reading within a (watch, cycle) pair.
// Difference is computed by the backend and is nil for the first reading.
type Measurement struct {
	ID         ID        `json:"log_id"`
	Datetime   Timestamp `json:"datetime"`
	Measure    float64   `json:"measure"`
	Difference *float64  `json:"difference"`
}

// CycleRef is an optional cycle number.
type CycleRef struct {
	Value int
	Valid bool
}

// NoCycle is the empty cycle reference.
var NoCycle = CycleRef{}

// Cycle returns a valid reference to c.
func Cycle(c int) CycleRef {
	return CycleRef{Value: c, Valid: true}
}

// Selection is the operator's current watch and cycle.
type Selection struct {
	Watch *Watch
	Cycle CycleRef
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return s.Watch == nil && !s.Cycle.Valid
}

// WatchID returns the selected watch's id, or the zero ID.
func (s Selection) WatchID() ID {
	if s.Watch == nil {
		return ""
	}
	return s.Watch.ID
}
