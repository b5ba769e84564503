// Package nist runs a subset of the NIST SP 800-22 statistical test suite
// over bit sequences and summarises the results.
package nist

import (
	"encoding/json"
	"math"
	"sort"
)

// Alpha is the significance level a p-value must reach to pass.
const Alpha = 0.01

type Status string

const (
	StatusPassed Status = "Passed"
	StatusFailed Status = "Failed"
	StatusError  Status = "Error"
)

// TestRow is one line of a report. Values holds the p-values (and a few
// statistics) keyed by name; p-values of tests that could not run are NaN.
type TestRow struct {
	Name   string
	Values map[string]float64
	Status Status
	Reason string
}

// MarshalJSON encodes NaN and infinite values as null.
func (r TestRow) MarshalJSON() ([]byte, error) {
	vals := make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vals[k] = nil
		} else {
			vals[k] = v
		}
	}
	return json.Marshal(struct {
		Name   string         `json:"name"`
		Values map[string]any `json:"values"`
		Status Status         `json:"status"`
		Reason string         `json:"reason,omitempty"`
	}{r.Name, vals, r.Status, r.Reason})
}

// PValues returns the p-values of the row in key order.
func (r TestRow) PValues() []float64 {
	keys := make([]string, 0, len(r.Values))
	for k := range r.Values {
		if isPValueKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = r.Values[k]
	}
	return out
}

func isPValueKey(k string) bool { return len(k) >= 6 && k[:6] == "pValue" }

type Report struct {
	Bits   int       `json:"n"`
	Rows   []TestRow `json:"report"`
	Passed bool      `json:"passed"`
}

type suiteTest struct {
	name string
	keys []string
	run  func([]byte) (map[string]float64, error)
}

var suite = []suiteTest{
	{"Frequency (Monobit) Test", []string{"pValue"}, frequency},
	{"Frequency Test within a Block", []string{"pValue"}, func(s []byte) (map[string]float64, error) { return blockFrequency(s, 128) }},
	{"Runs Test", []string{"pValue"}, runs},
	{"Test for the Longest Run of Ones in a Block", []string{"pValue"}, longestRun},
	{"Serial Test (m=2)", []string{"pValue1", "pValue2"}, func(s []byte) (map[string]float64, error) {
		if len(s) < minBits {
			return nil, precondition("n=%d < %d", len(s), minBits)
		}
		return serial(s, 2)
	}},
	{"Approximate Entropy Test (m=2)", []string{"pValue"}, func(s []byte) (map[string]float64, error) { return approximateEntropy(s, 2) }},
	{"Cumulative Sums (Cusum) Test", []string{"pValueFWD", "pValueREV"}, cumulativeSums},
}

// RunAll runs every test of the suite over bits (values 0 and 1). Tests
// whose preconditions fail get StatusError; the report passes when no test
// failed and at least one ran.
func RunAll(bits []byte) Report {
	rep := Report{Bits: len(bits), Rows: make([]TestRow, 0, len(suite))}
	ran := 0
	failed := false
	for _, t := range suite {
		row := TestRow{Name: t.name}
		vals, err := t.run(bits)
		if err != nil {
			row.Values = make(map[string]float64, len(t.keys))
			for _, k := range t.keys {
				row.Values[k] = math.NaN()
			}
			row.Status = StatusError
			row.Reason = err.Error()
			rep.Rows = append(rep.Rows, row)
			continue
		}
		row.Values = vals
		row.Status = statusFromAll(row.PValues()...)
		if row.Status == StatusFailed {
			failed = true
		}
		ran++
		rep.Rows = append(rep.Rows, row)
	}
	rep.Passed = ran > 0 && !failed
	return rep
}

func statusFromAll(ps ...float64) Status {
	for _, p := range ps {
		if !(p >= Alpha) {
			return StatusFailed
		}
	}
	return StatusPassed
}
