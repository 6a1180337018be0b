package features

import (
	"sort"
)

// Report lists what Align did to a record besides copying values through.
type Report struct {
	Dropped []string `json:"dropped,omitempty"` // identifier columns removed
	Ignored []string `json:"ignored,omitempty"` // keys not in the schema
	Missing []string `json:"missing,omitempty"` // schema columns absent from the record, set to 0
	Invalid []string `json:"invalid,omitempty"` // values that could not be coerced, set to 0
}

// Defaulted reports whether any schema column was filled with 0.
func (r Report) Defaulted() bool {
	return len(r.Missing) > 0 || len(r.Invalid) > 0
}

// Align converts one record into the vector the model expects:
//
//  1. keys in dropped are removed
//  2. schema columns absent from the record are filled with 0
//  3. keys not in the schema are ignored
//  4. values are laid out in schema order
//  5. each value is coerced to float64; anything uncoercible becomes 0
//  6. the scaler is applied column by column
//
// Steps 2 and 5 silently default instead of failing the request. Callers
// needing strict validation must check the record (or the returned Report)
// themselves. Input values are not range checked.
//
// The only error is a scaler that does not match the schema.
func Align(record Record, schema Schema, scaler *Scaler, dropped []string) (Vector, Report, error) {
	var report Report

	if err := scaler.Validate(len(schema)); err != nil {
		return nil, report, err
	}

	drop := make(map[string]struct{}, len(dropped))
	for _, name := range dropped {
		drop[name] = struct{}{}
	}

	pruned := make(Record, len(record))
	for k, v := range record {
		if _, ok := drop[k]; ok {
			report.Dropped = append(report.Dropped, k)
			continue
		}
		pruned[k] = v
	}

	known := make(map[string]struct{}, len(schema))
	raw := make([]float64, len(schema))
	for i, name := range schema {
		known[name] = struct{}{}

		v, present := pruned[name]
		if !present {
			report.Missing = append(report.Missing, name)
			continue
		}

		f, ok := Coerce(v)
		if !ok {
			report.Invalid = append(report.Invalid, name)
		}
		raw[i] = f
	}

	for k := range pruned {
		if _, ok := known[k]; !ok {
			report.Ignored = append(report.Ignored, k)
		}
	}
	sort.Strings(report.Dropped)
	sort.Strings(report.Ignored)

	vec, err := scaler.Transform(raw)
	if err != nil {
		return nil, report, err
	}
	return vec, report, nil
}
