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

// Package crypto holds the key abstraction and JWT signing helpers.
// Keys are injected capabilities: the issuer never sees raw private key material,
// it only gets a crypto.Signer, so keys may live in an external vault or HSM.
package crypto

import (
	"context"
	"crypto"
	"errors"
)

// ErrKeyNotFound is returned when the requested key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// Key is a helper interface which holds a crypto.Signer, KID and public key for a key.
type Key interface {
	// Signer returns a crypto.Signer.
	Signer() crypto.Signer
	// KID returns the unique ID for this key.
	KID() string
	// Public returns the public key. This is a short-hand for Signer().Public()
	Public() crypto.PublicKey
}

// KeyResolver resolves signing keys by KID.
type KeyResolver interface {
	// Resolve returns a Key for the given KID. ErrKeyNotFound is returned for an unknown KID.
	Resolve(ctx context.Context, kid string) (Key, error)
}

// KeyCreator is the interface for creating key pairs.
type KeyCreator interface {
	// New generates a keypair and returns a Key identified by the given KID.
	New(ctx context.Context, kid string) (Key, error)
}

// KeyStore defines the functions for working with private keys.
type KeyStore interface {
	KeyResolver
	KeyCreator
	// List returns the KIDs of the private keys that are present in the KeyStore.
	List() []string
}
