package vision

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexNumber accepts 12, 12.5, "12", "₹1,200.50" and null. Anything else
// decodes as 0.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.NewReplacer("₹", "", ",", "", "Rs.", "", "Rs", "").Replace(s)
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = flexNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		v = 0
	}
	*n = flexNumber(v)
	return nil
}

func (n flexNumber) Float() float64 { return float64(n) }
