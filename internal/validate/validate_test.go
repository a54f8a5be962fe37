// ABOUTME: Tests for compose admission validation
// ABOUTME: Pins the temperature/seed boundaries and prime-token normalization

package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog map[string]bool

func (f fakeCatalog) Contains(name string) bool { return f[name] }

var testCatalog = fakeCatalog{"thesession_with_repeats.pickle": true}

func allNotation(string) bool { return true }
func noNotation(string) bool  { return false }

func validData() Data {
	return Data{
		Model:    "thesession_with_repeats.pickle",
		Temp:     0.1,
		Seed:     123,
		Meter:    "M:4/4",
		Key:      "K:Cmaj",
		StartABC: "a b c",
	}
}

func TestValidate_AcceptsValidRequest(t *testing.T) {
	req, err := Validate(validData(), testCatalog, allNotation)
	require.NoError(t, err)
	assert.Equal(t, "thesession_with_repeats.pickle", req.ModelName)
	assert.Equal(t, 0.1, req.Temp)
	assert.Equal(t, 123, req.Seed)
	assert.Equal(t, "M:4/4 K:Cmaj a b c", req.PrimeTokens)
}

func TestValidate_TemperatureBoundary(t *testing.T) {
	tests := []struct {
		name  string
		temp  float64
		valid bool
	}{
		{"upper bound accepted", 10.0, true},
		{"eleven rejected", 11, false},
		{"just above bound rejected", 10.001, false},
		{"zero rejected", 0, false},
		{"negative rejected", -0.5, false},
		{"small positive accepted", 0.01, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validData()
			d.Temp = tt.temp
			_, err := Validate(d, testCatalog, allNotation)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_SeedBoundary(t *testing.T) {
	d := validData()
	d.Seed = -1
	_, err := Validate(d, testCatalog, allNotation)
	require.Error(t, err)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "seed", rej.Field)

	d.Seed = 0
	_, err = Validate(d, testCatalog, allNotation)
	assert.NoError(t, err)
}

func TestValidate_UnknownModelRejected(t *testing.T) {
	d := validData()
	d.Model = "nonexistent.pickle"
	_, err := Validate(d, testCatalog, allNotation)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "model", rej.Field)
}

func TestValidate_MeterAndKeyRequired(t *testing.T) {
	d := validData()
	d.Meter = ""
	_, err := Validate(d, testCatalog, allNotation)
	assert.Error(t, err)

	d = validData()
	d.Key = ""
	_, err = Validate(d, testCatalog, allNotation)
	assert.Error(t, err)
}

func TestValidate_NotationCheckOnlyForNonEmptySeedText(t *testing.T) {
	d := validData()
	d.StartABC = "slarty bartfast"
	_, err := Validate(d, testCatalog, noNotation)
	var rej *Rejection
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "start_abc", rej.Field)

	// Empty seed text never consults the notation check
	d.StartABC = ""
	req, err := Validate(d, testCatalog, noNotation)
	require.NoError(t, err)
	assert.Equal(t, "M:4/4 K:Cmaj", req.PrimeTokens)
}

func TestValidate_NoPartialApplication(t *testing.T) {
	// Several rules fail at once; exactly one rejection, no normalized output
	d := Data{Model: "nope", Temp: 11, Seed: -1}
	req, err := Validate(d, testCatalog, allNotation)
	assert.Nil(t, req)
	assert.Error(t, err)
}
