package infrastructure

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wacontacts/internal/entities"
)

// Row is one result row keyed by lower-cased column name. Accessors
// tolerate the value types of every backend driver.
type Row map[string]any

func newRow(columns []string, values []any) Row {
	r := make(Row, len(columns))
	for i, c := range columns {
		if i < len(values) {
			r[strings.ToLower(c)] = values[i]
		}
	}
	return r
}

func normalizeRow(m map[string]any) Row {
	r := make(Row, len(m))
	for k, v := range m {
		r[strings.ToLower(k)] = v
	}
	return r
}

func (r Row) get(col string) any {
	return r[strings.ToLower(col)]
}

func (r Row) IsNull(col string) bool {
	return r.get(col) == nil
}

func (r Row) Int64(col string) int64 {
	n, _ := toInt64(r.get(col))
	return n
}

func (r Row) Int(col string) int {
	return int(r.Int64(col))
}

func (r Row) String(col string) string {
	return toString(r.get(col))
}

func (r Row) Bool(col string) bool {
	b, _ := toBool(r.get(col))
	return b
}

func (r Row) Time(col string) time.Time {
	t, _ := toTime(r.get(col))
	return t
}

func (r Row) OptString(col string) entities.Opt[string] {
	v := r.get(col)
	if v == nil {
		return entities.None[string]()
	}
	return entities.Some(toString(v))
}

func (r Row) OptBool(col string) entities.Opt[bool] {
	b, ok := toBool(r.get(col))
	if !ok {
		return entities.None[bool]()
	}
	return entities.Some(b)
}

func (r Row) OptTime(col string) entities.Opt[time.Time] {
	t, ok := toTime(r.get(col))
	if !ok {
		return entities.None[time.Time]()
	}
	return entities.Some(t)
}

// JSON decodes a serialized JSON column into dst. NULL and empty leave dst untouched.
func (r Row) JSON(col string, dst any) error {
	v := r.get(col)
	var raw []byte
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(x)
	case []byte:
		raw = x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
		raw = b
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("column %s: %w", col, err)
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case float64:
		return int64(x), true
	case float32:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case []byte:
		n, err := strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case nil:
		return false, false
	case bool:
		return x, true
	case string:
		return parseBoolText(x)
	case []byte:
		return parseBoolText(string(x))
	}
	if n, ok := toInt64(v); ok {
		return n != 0, true
	}
	return false, false
}

func parseBoolText(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true":
		return true, true
	case "0", "f", "false":
		return false, true
	}
	return false, false
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(x)
	}
	if n, ok := toInt64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprint(v)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return parseTimeText(x)
	case []byte:
		return parseTimeText(string(x))
	case int64:
		return time.Unix(x, 0).UTC(), true
	}
	return time.Time{}, false
}

func parseTimeText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
