// elStrain: strain-level phasing of assembly graphs.
// Copyright (c) 2026 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elstrain/blob/master/LICENSE.txt>.

package consensus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// badgerLogger routes badger's internal logging to slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Checkpoint persists consensus records between the phasing and the
// transform stages.
type Checkpoint struct {
	db *badger.DB
}

// OpenCheckpoint opens or creates the checkpoint database in dir.
func OpenCheckpoint(dir string, logger *slog.Logger) (*Checkpoint, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint directory %s: %w", dir, err)
	}
	opts := badger.DefaultOptions(dir).WithSyncWrites(true).WithNumVersionsToKeep(1)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint %s: %w", dir, err)
	}
	return &Checkpoint{db: db}, nil
}

// Save replaces the stored records by records.
func (c *Checkpoint) Save(records map[Key]*Record) error {
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("clearing checkpoint: %w", err)
	}
	batch := c.db.NewWriteBatch()
	defer batch.Cancel()
	for key, record := range records {
		value, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encoding consensus %v: %w", key, err)
		}
		if err := batch.Set([]byte(key.String()), value); err != nil {
			return fmt.Errorf("storing consensus %v: %w", key, err)
		}
	}
	return batch.Flush()
}

// Load returns all stored records.
func (c *Checkpoint) Load() (map[Key]*Record, error) {
	records := make(map[Key]*Record)
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key, err := ParseKey(string(item.Key()))
			if err != nil {
				return err
			}
			record := new(Record)
			if err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, record)
			}); err != nil {
				return fmt.Errorf("decoding consensus %v: %w", key, err)
			}
			records[key] = record
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}
	return records, nil
}

// Close closes the checkpoint database.
func (c *Checkpoint) Close() error {
	return c.db.Close()
}
