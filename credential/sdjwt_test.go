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
	stdcrypto "crypto"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuts-foundation/openid4vci-issuer/crypto"
)

const testIssuer = "https://issuer.example.com"

func TestSignSDJwtVC(t *testing.T) {
	key := crypto.NewTestKey("https://issuer.example.com#key-1")

	t.Run("combined format with verifiable disclosures", func(t *testing.T) {
		sdJwt, err := SignSDJwtVC(key, testIssuer, "test_credential", "did:example:holder", map[string]interface{}{
			"given_name":  "Jane",
			"family_name": "Doe",
		}, nil)

		require.NoError(t, err)
		require.True(t, strings.HasSuffix(sdJwt, "~"))

		parts := strings.Split(strings.TrimSuffix(sdJwt, "~"), "~")
		require.Len(t, parts, 3) // JWT + 2 disclosures

		// JWT verifies against the issuer key
		token, err := crypto.ParseJWT(parts[0], func(_ string) (stdcrypto.PublicKey, error) {
			return key.Public(), nil
		})
		require.NoError(t, err)
		vct, _ := token.Get("vct")
		assert.Equal(t, "test_credential", vct)
		sub, _ := token.Get("sub")
		assert.Equal(t, "did:example:holder", sub)
		sdAlgClaim, _ := token.Get("_sd_alg")
		assert.Equal(t, "sha-256", sdAlgClaim)

		// every disclosure hash is present in _sd
		sdClaim, _ := token.Get("_sd")
		digests, ok := sdClaim.([]interface{})
		require.True(t, ok)
		require.Len(t, digests, 2)
		for _, disclosure := range parts[1:] {
			assert.Contains(t, digests, hashDisclosure(disclosure))
		}

		// disclosures decode to [salt, name, value]
		var decoded []interface{}
		data, err := base64.RawURLEncoding.DecodeString(parts[1])
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Len(t, decoded, 3)
		assert.Equal(t, "family_name", decoded[1])
		assert.Equal(t, "Doe", decoded[2])
	})
	t.Run("holder key is bound via cnf", func(t *testing.T) {
		holderKey := crypto.NewTestKey("did:example:holder#1")
		holderJwk, err := jwk.FromRaw(holderKey.Signer())
		require.NoError(t, err)

		sdJwt, err := SignSDJwtVC(key, testIssuer, "test_credential", "did:example:holder", nil, holderJwk)

		require.NoError(t, err)
		jwtPart := strings.Split(sdJwt, "~")[0]
		token, err := crypto.ParseJWT(jwtPart, func(_ string) (stdcrypto.PublicKey, error) {
			return key.Public(), nil
		})
		require.NoError(t, err)
		cnf, hasCnf := token.Get("cnf")
		require.True(t, hasCnf)
		assert.Contains(t, cnf.(map[string]interface{}), "jwk")
	})
	t.Run("no disclosable claims", func(t *testing.T) {
		sdJwt, err := SignSDJwtVC(key, testIssuer, "test_credential", "did:example:holder", nil, nil)

		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(sdJwt, "~"))
	})
}
