package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringList список строк, хранится как JSONB
type StringList []string

// Value реализует driver.Valuer для сохранения в БД
func (sl StringList) Value() (driver.Value, error) {
	if sl == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(sl)
}

// Scan реализует sql.Scanner для чтения из БД
func (sl *StringList) Scan(value interface{}) error {
	if value == nil {
		*sl = StringList{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal StringList value")
	}

	return json.Unmarshal(bytes, sl)
}

// JSONMap произвольный JSON объект, хранится как JSONB
type JSONMap map[string]interface{}

// Value реализует driver.Valuer для сохранения в БД
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(m)
}

// Scan реализует sql.Scanner для чтения из БД
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONMap value")
	}

	return json.Unmarshal(bytes, m)
}
