package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB represents a PostgreSQL JSONB field
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, j)
}

// scanBytes normalizes the driver representations of a JSON column.
// Postgres hands back []byte, SQLite may hand back string.
func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot scan %T into JSON column", value)
	}
}

// CallStatus is the provider-facing lifecycle of a call session
type CallStatus string

const (
	CallStatusInProgress CallStatus = "IN_PROGRESS"
	CallStatusCompleted  CallStatus = "COMPLETED"
	CallStatusFailed     CallStatus = "FAILED"
)
