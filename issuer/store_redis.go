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

	"github.com/redis/go-redis/v9"

	"github.com/nuts-foundation/openid4vci-issuer/issuer/log"
)

var _ Store = (*redisStore)(nil)

const redisKeyPrefix = "preauthorized_code:"

// NewRedisStore creates a pre-authorized code store backed by Redis.
// Expiry is enforced through key TTLs, consumption through GETDEL.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

type redisStore struct {
	client *redis.Client
}

func (s redisStore) Save(ctx context.Context, record PreAuthorizedCodeRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		// already expired, nothing to store
		return nil
	}
	return s.client.Set(ctx, redisKeyPrefix+record.Code, data, ttl).Err()
}

func (s redisStore) Get(ctx context.Context, code string) (*PreAuthorizedCodeRecord, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+code).Bytes()
	return s.unmarshalRecord(data, err)
}

func (s redisStore) Consume(ctx context.Context, code string) (*PreAuthorizedCodeRecord, error) {
	data, err := s.client.GetDel(ctx, redisKeyPrefix+code).Bytes()
	return s.unmarshalRecord(data, err)
}

func (s redisStore) unmarshalRecord(data []byte, err error) (*PreAuthorizedCodeRecord, error) {
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var record PreAuthorizedCodeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	if record.Expired(time.Now()) {
		return nil, nil
	}
	return &record, nil
}

func (s redisStore) Close() {
	if err := s.client.Close(); err != nil {
		log.Logger().WithError(err).Warn("Error closing Redis client")
	}
}
