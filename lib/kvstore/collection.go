// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package kvstore

import (
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Collection is a named namespace of keys within a store. Collections
// are cheap handles: constructing one performs no I/O, and two
// Collection values with the same name address the same rows. The name
// is part of the persisted format — changing it strands existing data.
type Collection struct {
	name string
}

// NewCollection returns a handle to the named collection.
func NewCollection(name string) Collection {
	return Collection{name: name}
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// GetString returns the string stored under key, reporting absence via
// the second return.
func (c Collection) GetString(tx ReadTx, key string) (string, bool, error) {
	var value string
	found, err := c.get(tx, key, &value)
	if err != nil || !found {
		return "", false, err
	}
	return value, true, nil
}

// SetString stores value under key, replacing any previous value.
func (c Collection) SetString(tx *WriteTx, key string, value string) error {
	return c.set(tx, key, value)
}

// GetBool returns the boolean stored under key, or defaultValue when
// the key is absent.
func (c Collection) GetBool(tx ReadTx, key string, defaultValue bool) (bool, error) {
	var value bool
	found, err := c.get(tx, key, &value)
	if err != nil {
		return defaultValue, err
	}
	if !found {
		return defaultValue, nil
	}
	return value, nil
}

// SetBool stores value under key, replacing any previous value.
func (c Collection) SetBool(tx *WriteTx, key string, value bool) error {
	return c.set(tx, key, value)
}

// GetDate returns the timestamp stored under key, reporting absence
// via the second return. The result is in UTC with millisecond
// precision, matching what SetDate persists.
func (c Collection) GetDate(tx ReadTx, key string) (time.Time, bool, error) {
	var millis int64
	found, err := c.get(tx, key, &millis)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	return time.UnixMilli(millis).UTC(), true, nil
}

// SetDate stores value under key as Unix milliseconds. Sub-millisecond
// precision and the location are not preserved.
func (c Collection) SetDate(tx *WriteTx, key string, value time.Time) error {
	return c.set(tx, key, value.UnixMilli())
}

// GetUint32 returns the integer stored under key, or defaultValue when
// the key is absent.
func (c Collection) GetUint32(tx ReadTx, key string, defaultValue uint32) (uint32, error) {
	var value uint32
	found, err := c.get(tx, key, &value)
	if err != nil {
		return defaultValue, err
	}
	if !found {
		return defaultValue, nil
	}
	return value, nil
}

// SetUint32 stores value under key, replacing any previous value.
func (c Collection) SetUint32(tx *WriteTx, key string, value uint32) error {
	return c.set(tx, key, value)
}

// GetObject decodes the value stored under key into target, which must
// be a non-nil pointer. Absence is reported via the first return, with
// target left untouched.
func (c Collection) GetObject(tx ReadTx, key string, target any) (bool, error) {
	return c.get(tx, key, target)
}

// SetObject stores value under key as deterministic CBOR.
func (c Collection) SetObject(tx *WriteTx, key string, value any) error {
	return c.set(tx, key, value)
}

// Remove deletes key from the collection. Removing an absent key is a
// no-op.
func (c Collection) Remove(tx *WriteTx, key string) error {
	err := sqlitex.Execute(tx.connection(),
		"DELETE FROM keyvalue WHERE collection = ? AND key = ?",
		&sqlitex.ExecOptions{Args: []any{c.name, key}})
	if err != nil {
		return fmt.Errorf("kvstore: remove %s/%s: %w", c.name, key, err)
	}
	return nil
}

// RemoveAll deletes every key in the collection.
func (c Collection) RemoveAll(tx *WriteTx) error {
	err := sqlitex.Execute(tx.connection(),
		"DELETE FROM keyvalue WHERE collection = ?",
		&sqlitex.ExecOptions{Args: []any{c.name}})
	if err != nil {
		return fmt.Errorf("kvstore: remove all %s: %w", c.name, err)
	}
	return nil
}

// Keys returns the collection's keys in lexicographic order.
func (c Collection) Keys(tx ReadTx) ([]string, error) {
	var keys []string
	err := sqlitex.Execute(tx.connection(),
		"SELECT key FROM keyvalue WHERE collection = ? ORDER BY key",
		&sqlitex.ExecOptions{
			Args: []any{c.name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				keys = append(keys, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("kvstore: keys %s: %w", c.name, err)
	}
	return keys, nil
}

// get decodes the value under key into target, reporting whether the
// key was present.
func (c Collection) get(tx ReadTx, key string, target any) (bool, error) {
	var raw []byte
	found := false
	err := sqlitex.Execute(tx.connection(),
		"SELECT value FROM keyvalue WHERE collection = ? AND key = ?",
		&sqlitex.ExecOptions{
			Args: []any{c.name, key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				raw = make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, raw)
				found = true
				return nil
			},
		})
	if err != nil {
		return false, fmt.Errorf("kvstore: get %s/%s: %w", c.name, key, err)
	}
	if !found {
		return false, nil
	}
	if err := unmarshalValue(raw, target); err != nil {
		return false, fmt.Errorf("kvstore: decoding %s/%s: %w", c.name, key, err)
	}
	return true, nil
}

// set encodes value and upserts it under key.
func (c Collection) set(tx *WriteTx, key string, value any) error {
	raw, err := marshalValue(value)
	if err != nil {
		return fmt.Errorf("kvstore: encoding %s/%s: %w", c.name, key, err)
	}
	err = sqlitex.Execute(tx.connection(),
		`INSERT INTO keyvalue (collection, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (collection, key) DO UPDATE SET value = excluded.value`,
		&sqlitex.ExecOptions{Args: []any{c.name, key, raw}})
	if err != nil {
		return fmt.Errorf("kvstore: set %s/%s: %w", c.name, key, err)
	}
	return nil
}
