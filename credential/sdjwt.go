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

package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/nuts-foundation/openid4vci-issuer/crypto"
)

// SDJwtVCType is the typ header of an SD-JWT VC.
const SDJwtVCType = "vc+sd-jwt"

const sdAlg = "sha-256"

// SignSDJwtVC builds and signs an SD-JWT VC.
// Every claim in disclosableClaims becomes a selectively disclosable claim:
// the JWT only carries its hash, the disclosure itself is appended after the JWT.
// The result is the combined format <jwt>~<disclosure>~...~ with a trailing tilde.
// holderKey, when given, is bound into the cnf claim.
func SignSDJwtVC(key crypto.Key, issuer string, vct string, subject string, disclosableClaims map[string]interface{}, holderKey jwk.Key) (string, error) {
	now := time.Now()

	// deterministic disclosure order keeps output stable for a given input
	names := make([]string, 0, len(disclosableClaims))
	for name := range disclosableClaims {
		names = append(names, name)
	}
	sort.Strings(names)

	disclosures := make([]string, 0, len(names))
	digests := make([]string, 0, len(names))
	for _, name := range names {
		disclosure, err := newDisclosure(name, disclosableClaims[name])
		if err != nil {
			return "", err
		}
		disclosures = append(disclosures, disclosure)
		digests = append(digests, hashDisclosure(disclosure))
	}

	claims := map[string]interface{}{
		"iss":     issuer,
		"sub":     subject,
		"vct":     vct,
		"iat":     now.Unix(),
		"_sd":     digests,
		"_sd_alg": sdAlg,
	}
	if holderKey != nil {
		publicKey, err := holderKey.PublicKey()
		if err != nil {
			return "", fmt.Errorf("unable to derive holder public key: %w", err)
		}
		claims["cnf"] = map[string]interface{}{"jwk": publicKey}
	}

	token, err := crypto.SignJWT(key, claims, map[string]interface{}{"typ": SDJwtVCType})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(token)
	for _, disclosure := range disclosures {
		sb.WriteString("~")
		sb.WriteString(disclosure)
	}
	sb.WriteString("~")
	return sb.String(), nil
}

// newDisclosure encodes [salt, name, value] as a base64url JSON array.
func newDisclosure(name string, value interface{}) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("unable to generate disclosure salt: %w", err)
	}
	data, err := json.Marshal([]interface{}{base64.RawURLEncoding.EncodeToString(salt), name, value})
	if err != nil {
		return "", fmt.Errorf("unable to marshal disclosure %s: %w", name, err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func hashDisclosure(disclosure string) string {
	digest := sha256.Sum256([]byte(disclosure))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}
