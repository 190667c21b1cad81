package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Stats keys produced by the backend.
const (
	StatAverage   = "average"
	StatDeviation = "deviation"
	StatDelta     = "delta"
)

// Stats maps an aggregate name to its value. Values the backend could not
// compute are NaN.
type Stats map[string]float64

// UnmarshalJSON implements json.Unmarshaler. Non-numeric values such as
// "N/A" decode to NaN.
func (s *Stats) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}
	out := make(Stats, len(raw))
	for k, v := range raw {
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			f = math.NaN()
		}
		out[k] = f
	}
	*s = out
	return nil
}

// MarshalJSON implements json.Marshaler. NaN values encode as "N/A".
func (s Stats) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(s))
	for k, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			raw[k] = "N/A"
			continue
		}
		raw[k] = v
	}
	return json.Marshal(raw)
}

// Format renders one value for display.
func (s Stats) Format(key string) string {
	v, ok := s[key]
	if !ok || math.IsNaN(v) {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Keys returns the stat names in display order: the well-known keys first,
// then any others alphabetically.
func (s Stats) Keys() []string {
	known := []string{StatAverage, StatDeviation, StatDelta}
	out := make([]string, 0, len(s))
	seen := make(map[string]bool, len(known))
	for _, k := range known {
		if _, ok := s[k]; ok {
			out = append(out, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range s {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
