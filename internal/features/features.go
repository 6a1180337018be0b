// Package features turns raw student records into the numeric vectors the
// placement model was trained on. It owns the feature schema, the fitted
// standard scaler and the reconciliation step that aligns an arbitrary
// key/value record to the schema.
package features

import (
	"errors"
	"fmt"
)

// Record is one raw input as received from a caller. Values may be numbers,
// numeric strings, json.Number, bool or nil.
type Record map[string]any

// Schema is the ordered feature list fixed at training time. Its order is
// authoritative: position i of a Vector and of the Scaler refer to Schema[i].
type Schema []string

// Vector is an aligned, scaled feature row in schema order.
type Vector []float64

var (
	ErrEmptySchema     = errors.New("feature schema is empty")
	ErrDuplicateColumn = errors.New("feature schema has duplicate column")
	ErrScalerMismatch  = errors.New("scaler parameters do not match schema")
)

// Validate checks the schema is non-empty and free of duplicates.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return ErrEmptySchema
	}
	seen := make(map[string]struct{}, len(s))
	for _, name := range s {
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Index returns the position of name in the schema, or -1.
func (s Schema) Index(name string) int {
	for i, n := range s {
		if n == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two schemas have the same names in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}
