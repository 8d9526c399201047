package providers

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// flexFloat decodes a JSON number leniently: null, non-finite values and
// anything that does not parse as a number become nil instead of NaN or 0.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	f.v = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if json.Unmarshal(b, &s) != nil {
			return nil
		}
		parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if perr != nil {
			return nil
		}
		n = parsed
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	f.v = &n
	return nil
}

// Ptr returns the decoded value or nil.
func (f flexFloat) Ptr() *float64 {
	return f.v
}

// at returns vals[i] or nil when i is out of range.
func at(vals []flexFloat, i int) *float64 {
	if i < 0 || i >= len(vals) {
		return nil
	}
	return vals[i].Ptr()
}
