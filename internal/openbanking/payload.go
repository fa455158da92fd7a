package openbanking

import (
	"encoding/json"
	"fmt"
	"strings"

	"erpfin/bank-sync/internal/currencyutils"

	"github.com/shopspring/decimal"
)

// Payload is a raw provider object as decoded by DecodeJSON.
type Payload map[string]any

// Lookup follows a dotted path through nested objects.
func (p Payload) Lookup(path string) (any, bool) {
	var current any = map[string]any(p)
	for _, key := range strings.Split(path, ".") {
		obj, ok := asObject(current)
		if !ok {
			return nil, false
		}
		if current, ok = obj[key]; !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

// String returns the first path holding a non-empty scalar, rendered as text.
func (p Payload) String(paths ...string) string {
	for _, path := range paths {
		v, ok := p.Lookup(path)
		if !ok {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case bool:
			s = fmt.Sprint(t)
		case float64, int, int64:
			s = fmt.Sprint(t)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Decimal returns the first path holding a number or a numeric string.
func (p Payload) Decimal(paths ...string) (decimal.Decimal, bool) {
	for _, path := range paths {
		v, ok := p.Lookup(path)
		if !ok {
			continue
		}
		if d, ok := toDecimal(v); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}

// Object returns the nested object at path.
func (p Payload) Object(path string) (Payload, bool) {
	v, ok := p.Lookup(path)
	if !ok {
		return nil, false
	}
	obj, ok := asObject(v)
	return obj, ok
}

func asObject(v any) (Payload, bool) {
	switch t := v.(type) {
	case Payload:
		return t, true
	case map[string]any:
		return t, true
	}
	return nil, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(t)); err == nil {
			return d, true
		}
		return currencyutils.ParseValue(t)
	}
	return decimal.Zero, false
}
