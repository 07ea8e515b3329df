package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FlexDecimal decodes a JSON number or numeric string. Anything else
// (null, "", garbage) leaves Valid false instead of failing the decode.
type FlexDecimal struct {
	Valid bool
	Value decimal.Decimal
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexDecimal) UnmarshalJSON(data []byte) error {
	*f = FlexDecimal{}
	raw := unquote(bytes.TrimSpace(data))
	if raw == "" || raw == "null" {
		return nil
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		f.Valid = true
		f.Value = d
	}
	return nil
}

// OrZero returns the value or zero when absent/invalid.
func (f FlexDecimal) OrZero() decimal.Decimal {
	if !f.Valid {
		return decimal.Zero
	}
	return f.Value
}

// MarshalJSON implements json.Marshaler.
func (f FlexDecimal) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(f.Value.String()), nil
}

// FlexInt decodes a JSON integer or integer string; invalid input is zero.
// Values outside the int32 range (the width of the integer columns they land
// in), NaN and infinities are invalid.
type FlexInt struct {
	Valid bool
	Value int
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	raw := unquote(bytes.TrimSpace(data))
	if raw == "" || raw == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 32); err == nil {
		f.Valid = true
		f.Value = int(n)
		return nil
	}
	fl, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(fl) || math.IsInf(fl, 0) {
		return nil
	}
	if fl = math.Trunc(fl); fl < math.MinInt32 || fl > math.MaxInt32 {
		return nil
	}
	f.Valid = true
	f.Value = int(fl)
	return nil
}

// FlexString decodes any JSON scalar into its string form.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(trimmed)
	return nil
}

func (f FlexString) String() string { return string(f) }

var flexTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FlexTime decodes RFC3339-ish strings or epoch milliseconds.
type FlexTime struct {
	Valid bool
	Value time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexTime) UnmarshalJSON(data []byte) error {
	*f = FlexTime{}
	raw := unquote(bytes.TrimSpace(data))
	if raw == "" || raw == "null" {
		return nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		f.Valid = true
		f.Value = time.UnixMilli(ms).UTC()
		return nil
	}
	for _, layout := range flexTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			f.Valid = true
			f.Value = t.UTC()
			return nil
		}
	}
	return nil
}

// OrNow returns the parsed time or now when absent/invalid.
func (f FlexTime) OrNow(now func() time.Time) time.Time {
	if f.Valid {
		return f.Value
	}
	return now().UTC()
}

func unquote(b []byte) string {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var out string
		if err := json.Unmarshal(b, &out); err == nil {
			return strings.TrimSpace(out)
		}
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
