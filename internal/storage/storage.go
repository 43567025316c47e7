// Package storage provides the durable keyed blob store the state document is
// persisted to. Semantics are whole-document overwrite: Save replaces the blob
// under the key, Load returns it or reports absence.
package storage

import (
	"errors"
	"strings"
)

type Storage interface {
	Save(key string, blob []byte) error
	Load(key string) ([]byte, bool, error)
}

const (
	EngineSQLite = "sqlite"
	EngineJSON   = "json"
)

// NewByEngine selects a storage engine by name. SQLite is the default.
func NewByEngine(engine, path string) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineSQLite:
		return NewSQLiteStorage(path)
	case EngineJSON:
		return NewJSONStorage(path)
	default:
		return nil, errors.New("unsupported storage engine: " + engine)
	}
}
