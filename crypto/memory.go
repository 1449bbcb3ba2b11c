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

package crypto

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
)

var _ KeyStore = (*MemoryKeyStore)(nil)

// NewMemoryKeyStore returns a KeyStore that generates and holds keys in memory.
// Keys do not survive a restart, so it is only suitable for development and tests.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: map[string]Key{}}
}

// MemoryKeyStore is an in-memory, ephemeral KeyStore.
type MemoryKeyStore struct {
	mux  sync.RWMutex
	keys map[string]Key
}

func (m *MemoryKeyStore) New(_ context.Context, kid string) (Key, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("unable to generate key pair: %w", err)
	}
	key := memoryKey{privateKey: privateKey, kid: kid}
	m.mux.Lock()
	defer m.mux.Unlock()
	m.keys[kid] = key
	return key, nil
}

func (m *MemoryKeyStore) Resolve(_ context.Context, kid string) (Key, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	key, ok := m.keys[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

func (m *MemoryKeyStore) List() []string {
	m.mux.RLock()
	defer m.mux.RUnlock()
	result := make([]string, 0, len(m.keys))
	for kid := range m.keys {
		result = append(result, kid)
	}
	sort.Strings(result)
	return result
}

type memoryKey struct {
	privateKey *ecdsa.PrivateKey
	kid        string
}

func (k memoryKey) Signer() crypto.Signer {
	return k.privateKey
}

func (k memoryKey) KID() string {
	return k.kid
}

func (k memoryKey) Public() crypto.PublicKey {
	return k.privateKey.Public()
}
