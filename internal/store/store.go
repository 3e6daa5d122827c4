// Package store defines the record persistence contract used by the backend.
// Records are schemaless documents keyed by model name and internal id.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Record is a stored document. The "id" key holds the internal id.
type Record map[string]any

// ID returns the record's internal id.
func (r Record) ID() string {
	if r == nil {
		return ""
	}
	switch v := r["id"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Store persists records.
type Store interface {
	// List returns every record of model in insertion order.
	List(ctx context.Context, model string) ([]Record, error)
	// Get returns one record or ErrNotFound.
	Get(ctx context.Context, model, id string) (Record, error)
	// FindByField returns the records of model whose field equals value, in insertion order.
	FindByField(ctx context.Context, model, field string, value any) ([]Record, error)
	// Insert assigns an internal id to data and stores it.
	Insert(ctx context.Context, model string, data Record) (Record, error)
	// Update merges patch into the stored record and returns the result.
	Update(ctx context.Context, model, id string, patch Record) (Record, error)
	// Delete removes the record and returns its last state.
	Delete(ctx context.Context, model, id string) (Record, error)
}

// ValuesEqual compares two stored or argument values. Numbers compare by
// value regardless of their Go type; everything else compares by its string form.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aNum := ToFloat(a)
	bf, bNum := ToFloat(b)
	if aNum && bNum {
		return af == bf
	}
	if aNum != bNum {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// ToFloat converts numeric values to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ParseNumber converts a numeric string to float64.
func ParseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
