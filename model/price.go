package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// SafePrice treats any price that is not a finite positive number as 0.
func SafePrice(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return 0
	}
	return p
}

// ParsePrice 将任意输入（数字、数字字符串、json.Number）转换为价格，无法解析时返回 0
func ParsePrice(v any) float64 {
	switch p := v.(type) {
	case float64:
		return SafePrice(p)
	case float32:
		return SafePrice(float64(p))
	case int:
		return SafePrice(float64(p))
	case int64:
		return SafePrice(float64(p))
	case json.Number:
		f, err := p.Float64()
		if err != nil {
			return 0
		}
		return SafePrice(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0
		}
		return SafePrice(f)
	default:
		return 0
	}
}

// Price is a lenient JSON price: numbers and numeric strings decode normally,
// anything else (null, garbage, objects) decodes to 0 instead of failing.
type Price float64

func (p *Price) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		*p = 0
		return nil
	}
	*p = Price(ParsePrice(v))
	return nil
}

// FlexibleID decodes an identifier that upstream may send as a number or a string.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}
