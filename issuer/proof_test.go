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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuts-foundation/openid4vci-issuer/crypto"
	"github.com/nuts-foundation/openid4vci-issuer/oauth"
)

func testProofJwt(t *testing.T, claims map[string]interface{}, headers map[string]interface{}) string {
	t.Helper()
	holderKey := crypto.NewTestKey("did:example:holder#1")
	if headers == nil {
		headers = map[string]interface{}{"typ": ProofTypeJWT}
	}
	proof, err := crypto.SignJWT(holderKey, claims, headers)
	require.NoError(t, err)
	return proof
}

func TestValidateProof(t *testing.T) {
	t.Run("valid proof", func(t *testing.T) {
		proofJwt := testProofJwt(t, map[string]interface{}{
			"aud":   testIssuerURL,
			"nonce": "nonce",
		}, nil)
		request := CredentialRequest{Proofs: CredentialRequestProofs{Jwt: []string{proofJwt}}}

		proof, err := ValidateProof(request, testIssuerURL, "nonce")

		require.NoError(t, err)
		assert.Equal(t, proofJwt, proof.Jwt)
		assert.Equal(t, "did:example:holder#1", proof.Kid)
	})
	t.Run("missing proof", func(t *testing.T) {
		_, err := ValidateProof(CredentialRequest{}, testIssuerURL, "nonce")

		assert.Equal(t, oauth.OAuth2Error{
			Code:        oauth.InvalidRequest,
			Description: "Missing JWT proof in proofs",
		}, err)
	})
	t.Run("not a JWT", func(t *testing.T) {
		request := CredentialRequest{Proofs: CredentialRequestProofs{Jwt: []string{"garbage"}}}

		_, err := ValidateProof(request, testIssuerURL, "")

		var oauthErr oauth.OAuth2Error
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, oauth.InvalidProof, oauthErr.Code)
	})
	t.Run("wrong typ header", func(t *testing.T) {
		proofJwt := testProofJwt(t, map[string]interface{}{"aud": testIssuerURL}, map[string]interface{}{"typ": "JWT"})
		request := CredentialRequest{Proofs: CredentialRequestProofs{Jwt: []string{proofJwt}}}

		_, err := ValidateProof(request, testIssuerURL, "")

		assert.Equal(t, oauth.OAuth2Error{
			Code:        oauth.InvalidProof,
			Description: "proof typ header must be " + ProofTypeJWT,
		}, err)
	})
	t.Run("wrong audience", func(t *testing.T) {
		proofJwt := testProofJwt(t, map[string]interface{}{
			"aud":   "https://other.example.com",
			"nonce": "nonce",
		}, nil)
		request := CredentialRequest{Proofs: CredentialRequestProofs{Jwt: []string{proofJwt}}}

		_, err := ValidateProof(request, testIssuerURL, "nonce")

		assert.Equal(t, oauth.OAuth2Error{
			Code:        oauth.InvalidProof,
			Description: "proof audience does not match credential issuer",
		}, err)
	})
	t.Run("wrong nonce", func(t *testing.T) {
		proofJwt := testProofJwt(t, map[string]interface{}{
			"aud":   testIssuerURL,
			"nonce": "other",
		}, nil)
		request := CredentialRequest{Proofs: CredentialRequestProofs{Jwt: []string{proofJwt}}}

		_, err := ValidateProof(request, testIssuerURL, "nonce")

		assert.Equal(t, oauth.OAuth2Error{
			Code:        oauth.InvalidProof,
			Description: "proof nonce does not match c_nonce",
		}, err)
	})
	t.Run("no nonce expected", func(t *testing.T) {
		proofJwt := testProofJwt(t, map[string]interface{}{"aud": testIssuerURL}, nil)
		request := CredentialRequest{Proofs: CredentialRequestProofs{Jwt: []string{proofJwt}}}

		_, err := ValidateProof(request, testIssuerURL, "")

		assert.NoError(t, err)
	})
}
