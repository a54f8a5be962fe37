// ABOUTME: Admission validation for compose commands
// ABOUTME: Pure all-or-nothing checks producing a normalized generation request

package validate

import (
	"fmt"
	"strings"
)

// MaxTemp is the exclusive upper bound region for sampling temperature:
// values up to and including 10 are accepted, 11 and above are not.
const MaxTemp = 10.0

// Catalog is the external collaborator supplying the set of known models.
type Catalog interface {
	Contains(name string) bool
}

// NotationFunc is the external collaborator judging ABC seed text validity.
type NotationFunc func(text string) bool

// Data is the raw payload of a compose command.
type Data struct {
	Model    string  `json:"model"`
	Temp     float64 `json:"temp"`
	Seed     int     `json:"seed"`
	Meter    string  `json:"meter"`
	Key      string  `json:"key"`
	StartABC string  `json:"start_abc"`
}

// Request is a validated, normalized generation request ready to persist.
type Request struct {
	ModelName   string
	Temp        float64
	Seed        int
	Meter       string
	Key         string
	PrimeTokens string
}

// Rejection describes why a compose command was not admitted.
type Rejection struct {
	Field  string
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("invalid %s: %s", r.Field, r.Reason)
}

// Validate applies every admission rule and returns the normalized request,
// or a Rejection naming the first failing field. No rule has side effects;
// a rejected command leaves no trace.
func Validate(d Data, catalog Catalog, notation NotationFunc) (*Request, error) {
	if !catalog.Contains(d.Model) {
		return nil, &Rejection{Field: "model", Reason: fmt.Sprintf("unknown model %q", d.Model)}
	}
	if d.Temp <= 0 || d.Temp > MaxTemp {
		return nil, &Rejection{Field: "temp", Reason: fmt.Sprintf("temperature %v outside (0, %v]", d.Temp, MaxTemp)}
	}
	if d.Seed < 0 {
		return nil, &Rejection{Field: "seed", Reason: "seed must be non-negative"}
	}
	if d.Meter == "" {
		return nil, &Rejection{Field: "meter", Reason: "meter is required"}
	}
	if d.Key == "" {
		return nil, &Rejection{Field: "key", Reason: "key is required"}
	}
	if d.StartABC != "" && !notation(d.StartABC) {
		return nil, &Rejection{Field: "start_abc", Reason: "not valid ABC notation"}
	}

	return &Request{
		ModelName:   d.Model,
		Temp:        d.Temp,
		Seed:        d.Seed,
		Meter:       d.Meter,
		Key:         d.Key,
		PrimeTokens: primeTokens(d.Meter, d.Key, d.StartABC),
	}, nil
}

// primeTokens concatenates the non-empty parts space-separated. The result
// is the starting context handed to the generation worker.
func primeTokens(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
