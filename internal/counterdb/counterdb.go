/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package counterdb is the optional on-disk counter cache (§4.2a, §6
// Persisted state): one bbolt bucket per Module, gob-encoding each key's
// MetricsRecord so a process restarted with the same --persist-path
// resumes counting instead of starting cold. The on-disk layout is
// explicitly not part of any compatibility contract (§6) — it exists
// purely to survive this process's own restarts.
package counterdb

import (
	"bytes"
	"encoding/gob"
	"time"

	"go.etcd.io/bbolt"

	"github.com/webtrail/webtrail/internal/model"
)

// DB wraps a bbolt handle with one bucket per Module.
type DB struct {
	bolt *bbolt.DB
}

// Open creates or opens the counter database at path, creating one bucket
// per Module if absent.
func Open(path string) (*DB, error) {
	b, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = b.Update(func(tx *bbolt.Tx) error {
		for _, m := range model.Modules() {
			if _, err := tx.CreateBucketIfNotExists(bucketName(m)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.Close()
		return nil, err
	}
	return &DB{bolt: b}, nil
}

func bucketName(m model.Module) []byte {
	return []byte(m.String())
}

// Close releases the underlying file handle.
func (d *DB) Close() error {
	return d.bolt.Close()
}

// Put gob-encodes rec and stores it under key in module m's bucket,
// overwriting any prior value (upsert semantics mirror the in-memory
// store, §4.2).
func (d *DB) Put(m model.Module, key string, rec model.MetricsRecord) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return err
	}
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName(m)).Put([]byte(key), buf.Bytes())
	})
}

// LoadAll reads every module's bucket back into a key->record map,
// keyed by Module, for seeding internal/store.Store on startup.
func (d *DB) LoadAll() (map[model.Module]map[string]model.MetricsRecord, error) {
	out := make(map[model.Module]map[string]model.MetricsRecord, len(model.Modules()))
	err := d.bolt.View(func(tx *bbolt.Tx) error {
		for _, m := range model.Modules() {
			b := tx.Bucket(bucketName(m))
			if b == nil {
				continue
			}
			records := make(map[string]model.MetricsRecord)
			cerr := b.ForEach(func(k, v []byte) error {
				var rec model.MetricsRecord
				if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec); err != nil {
					return err
				}
				records[string(k)] = rec
				return nil
			})
			if cerr != nil {
				return cerr
			}
			out[m] = records
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
