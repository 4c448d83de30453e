package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Seconds is a float64 time offset that unmarshals from either a JSON
// number or a numeric string. Some ASR backends emit `"start": "1.52"`,
// others `"start": 1.52`; both decode to the same value.
type Seconds float64

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*s = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return fmt.Errorf("parsing seconds %q: %w", str, err)
		}
		*s = Seconds(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("parsing seconds %s: %w", raw, err)
	}
	*s = Seconds(v)
	return nil
}

// MarshalJSON implements json.Marshaler. Values always serialize as plain
// JSON numbers.
func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(s))
}

// Float returns the value as a plain float64.
func (s Seconds) Float() float64 { return float64(s) }
