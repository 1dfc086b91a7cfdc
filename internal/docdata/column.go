package docdata

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Column adapts any JSON-serializable value to a jsonb column.
type Column[T any] struct {
	V T
}

func NewColumn[T any](v T) Column[T] {
	return Column[T]{V: v}
}

func (c Column[T]) Value() (driver.Value, error) {
	encoded, err := json.Marshal(c.V)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return string(encoded), nil
}

func (c *Column[T]) Scan(src any) error {
	var raw []byte
	switch typed := src.(type) {
	case nil:
		var zero T
		c.V = zero
		return nil
	case []byte:
		raw = typed
	case string:
		raw = []byte(typed)
	default:
		return fmt.Errorf("scan json column: unsupported source %T", src)
	}
	var decoded T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("scan json column: %w", err)
	}
	c.V = decoded
	return nil
}
