package remote

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one loosely typed record as returned by the remote sheets.
type Row map[string]any

// String returns the first non-empty value among keys, trimmed.
func (r Row) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case bool:
			s = strconv.FormatBool(t)
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			s = fmt.Sprint(t)
		}
		s = strings.TrimSpace(s)
		if s != "" && s != "undefined" && s != "null" {
			return s
		}
	}
	return ""
}

// Float returns the first numeric value among keys. Strings using a comma as
// decimal separator are accepted.
func (r Row) Float(keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case json.Number:
			if f, err := t.Float64(); err == nil {
				return f, true
			}
		case float64:
			return t, true
		case string:
			s := strings.ReplaceAll(strings.TrimSpace(t), " ", "")
			s = strings.ReplaceAll(s, ",", ".")
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// FloatOr is Float with a default.
func (r Row) FloatOr(def float64, keys ...string) float64 {
	if f, ok := r.Float(keys...); ok {
		return f
	}
	return def
}

func (r Row) Int(keys ...string) int64 {
	f, _ := r.Float(keys...)
	return int64(f)
}

// Bool understands booleans, 0/1 and the usual yes/no spellings.
func (r Row) Bool(def bool, keys ...string) bool {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t
		case json.Number:
			return t.String() != "0"
		case float64:
			return t != 0
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "1", "true", "yes", "oui", "y", "x", "valide":
				return true
			case "0", "false", "no", "non", "n":
				return false
			}
		}
	}
	return def
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// Time parses the first value among keys in any of the layouts the remote
// is known to emit. Values without zone are UTC.
func (r Row) Time(keys ...string) (time.Time, bool) {
	for _, k := range keys {
		s := r.String(k)
		if s == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// Rows returns a nested array of objects, e.g. product units.
func (r Row) Rows(key string) ([]Row, bool) {
	raw, ok := r[key].([]any)
	if !ok {
		return nil, false
	}
	rows := make([]Row, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			rows = append(rows, Row(m))
		}
	}
	return rows, true
}

// UpdatedAt is the timestamp used to advance pull watermarks.
func (r Row) UpdatedAt() (time.Time, bool) {
	return r.Time("_remote_updated_at", "updated_at", "last_update", "created_at", "sold_at")
}
