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
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashUserPin returns the hex-encoded SHA-256 hash of the given user PIN.
// Records store the hash, never the PIN itself.
func HashUserPin(pin string) string {
	digest := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(digest[:])
}

// verifyUserPin compares the given PIN against the stored hash in constant time.
func verifyUserPin(hashedPin string, pin string) bool {
	if hashedPin == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hashedPin), []byte(HashUserPin(pin))) == 1
}
