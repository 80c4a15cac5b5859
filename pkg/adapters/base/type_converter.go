package base

import (
	"database/sql/driver"
	"encoding/json"
)

// DriverValue resolves driver.Valuer implementations and dereferences
// pointers to basic types, the way database/sql does for query arguments.
// Values the default converter does not understand are returned unchanged.
func DriverValue(v any) any {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		if raw == nil {
			return nil
		}
		return string(raw)
	}
	out, err := driver.DefaultParameterConverter.ConvertValue(v)
	if err != nil {
		return v
	}
	return out
}

// IsNull reports whether v is written as SQL NULL.
func IsNull(v any) bool {
	return DriverValue(v) == nil
}
