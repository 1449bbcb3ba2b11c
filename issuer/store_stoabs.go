/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package issuer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nuts-foundation/go-stoabs"

	"github.com/nuts-foundation/openid4vci-issuer/issuer/log"
)

var _ Store = (*stoabsStore)(nil)

const preAuthorizedCodeShelf = "preauthorized_codes"

// NewStoabsStore creates a pre-authorized code store on a stoabs KVStore (e.g. BBolt).
// The backing store has no TTL support, so expiry is enforced on read:
// expired records are treated as absent and deleted when encountered.
func NewStoabsStore(db stoabs.KVStore) Store {
	return &stoabsStore{db: db}
}

type stoabsStore struct {
	db stoabs.KVStore
}

func (s stoabsStore) Save(ctx context.Context, record PreAuthorizedCodeRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.db.WriteShelf(ctx, preAuthorizedCodeShelf, func(writer stoabs.Writer) error {
		return writer.Put(stoabs.BytesKey(record.Code), data)
	})
}

func (s stoabsStore) Get(ctx context.Context, code string) (*PreAuthorizedCodeRecord, error) {
	var record *PreAuthorizedCodeRecord
	err := s.db.ReadShelf(ctx, preAuthorizedCodeShelf, func(reader stoabs.Reader) error {
		data, err := reader.Get(stoabs.BytesKey(code))
		if err != nil {
			if errors.Is(err, stoabs.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		record = new(PreAuthorizedCodeRecord)
		return json.Unmarshal(data, record)
	})
	if err != nil {
		return nil, err
	}
	if record != nil && record.Expired(time.Now()) {
		return nil, nil
	}
	return record, nil
}

func (s stoabsStore) Consume(ctx context.Context, code string) (*PreAuthorizedCodeRecord, error) {
	var record *PreAuthorizedCodeRecord
	// read and delete in a single write transaction, so concurrent redeemers
	// of the same code cannot both observe the record
	err := s.db.WriteShelf(ctx, preAuthorizedCodeShelf, func(writer stoabs.Writer) error {
		data, err := writer.Get(stoabs.BytesKey(code))
		if err != nil {
			if errors.Is(err, stoabs.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		record = new(PreAuthorizedCodeRecord)
		if err := json.Unmarshal(data, record); err != nil {
			return err
		}
		return writer.Delete(stoabs.BytesKey(code))
	})
	if err != nil {
		return nil, err
	}
	if record != nil && record.Expired(time.Now()) {
		return nil, nil
	}
	return record, nil
}

func (s stoabsStore) Close() {
	if err := s.db.Close(context.Background()); err != nil {
		log.Logger().WithError(err).Warn("Error closing key-value store")
	}
}
