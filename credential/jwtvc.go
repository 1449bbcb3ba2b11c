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

// Package credential contains the signing primitives for the supported credential
// formats: W3C JWT-VC, IETF SD-JWT VC and ISO mdoc.
// The primitives only need a crypto.Key capability, never raw key material.
package credential

import (
	"time"

	"github.com/google/uuid"

	"github.com/nuts-foundation/openid4vci-issuer/crypto"
)

// DefaultContext is the W3C credentials context.
const DefaultContext = "https://www.w3.org/2018/credentials/v1"

// VerifiableCredentialType is the type all W3C credentials carry.
const VerifiableCredentialType = "VerifiableCredential"

// SignJwtVC builds and signs a W3C Verifiable Credential in JWT encoding.
// credentialType is added to the base VerifiableCredential type.
// subject identifies the holder, credentialSubject carries the claims.
func SignJwtVC(key crypto.Key, issuer string, credentialType string, subject string, credentialSubject map[string]interface{}) (string, error) {
	now := time.Now()
	types := []string{VerifiableCredentialType}
	if credentialType != "" {
		types = append(types, credentialType)
	}
	subjectClaims := map[string]interface{}{"id": subject}
	for claim, value := range credentialSubject {
		subjectClaims[claim] = value
	}
	vc := map[string]interface{}{
		"@context":          []string{DefaultContext},
		"type":              types,
		"issuer":            issuer,
		"credentialSubject": subjectClaims,
	}
	claims := map[string]interface{}{
		"iss": issuer,
		"sub": subject,
		"jti": "urn:uuid:" + uuid.NewString(),
		"nbf": now.Unix(),
		"iat": now.Unix(),
		"vc":  vc,
	}
	return crypto.SignJWT(key, claims, map[string]interface{}{"typ": "JWT"})
}
