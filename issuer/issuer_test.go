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
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuts-foundation/openid4vci-issuer/crypto"
	"github.com/nuts-foundation/openid4vci-issuer/oauth"
)

func newTestIssuer(t *testing.T) (*Issuer, Store, crypto.KeyResolver, string) {
	keyStore, kid := newTestKeyStore(t)
	store := NewMemoryStore()
	t.Cleanup(store.Close)

	dataSource := StaticCredentialData{
		"test_credential": {"given_name": "Jane", "family_name": "Doe"},
	}
	result := New(testIssuerURL, 15*time.Minute,
		NewAccessTokenService(keyStore, kid),
		NewAccessTokenVerifier(keyStore, testIssuerURL),
		dataSource)
	result.RegisterGrantHandler(NewPreAuthorizedCodeHandler(store))
	result.RegisterCredentialHandler(NewSDJwtVCHandler(keyStore, kid, testIssuerURL))
	result.RegisterCredentialHandler(NewJwtVCHandler(keyStore, kid, testIssuerURL))
	result.RegisterConfiguration(CredentialConfiguration{ID: "test_credential", Format: SDJwtVCFormat})
	return result, store, keyStore, kid
}

func TestIssuer_HandleTokenRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("pre-authorized code flow yields a bearer token", func(t *testing.T) {
		issuer, store, _, _ := newTestIssuer(t)
		require.NoError(t, store.Save(ctx, testRecord("code")))

		response, err := issuer.HandleTokenRequest(ctx, preAuthorizedForm("code", ""))

		require.NoError(t, err)
		assert.NotEmpty(t, response.AccessToken)
		assert.Equal(t, oauth.BearerTokenType, response.TokenType)
		require.NotNil(t, response.ExpiresIn)
		assert.Equal(t, int((15 * time.Minute).Seconds()), *response.ExpiresIn)
		require.NotNil(t, response.Scope)
		assert.Equal(t, "test_credential", *response.Scope)
		require.NotNil(t, response.CNonce)
		assert.Equal(t, "nonce", *response.CNonce)
		require.NotNil(t, response.CNonceExpiresIn)
		assert.InDelta(t, 300, *response.CNonceExpiresIn, 2)
	})
	t.Run("access token claims", func(t *testing.T) {
		issuer, store, keyResolver, _ := newTestIssuer(t)
		require.NoError(t, store.Save(ctx, testRecord("code")))

		response, err := issuer.HandleTokenRequest(ctx, preAuthorizedForm("code", ""))
		require.NoError(t, err)

		verifier := NewAccessTokenVerifier(keyResolver, testIssuerURL)
		claims, err := verifier.Verify(ctx, response.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "did:example:holder", claims["sub"])
		assert.Equal(t, testIssuerURL, claims["iss"])
		assert.Equal(t, "test_credential", claims["scope"])
		assert.Equal(t, "client", claims["client_id"])
		assert.Equal(t, "code", claims["pre_authorized_code"])
		assert.Equal(t, "nonce", claims["c_nonce"])
		assert.Equal(t, "https://wallet.example.com", toFirstAudience(claims["aud"]))
	})
	t.Run("missing grant_type", func(t *testing.T) {
		issuer, _, _, _ := newTestIssuer(t)

		_, err := issuer.HandleTokenRequest(ctx, url.Values{})

		assert.Equal(t, oauth.OAuth2Error{
			Code:        oauth.InvalidRequest,
			Description: "missing grant_type parameter",
		}, err)
	})
	t.Run("unsupported grant type", func(t *testing.T) {
		issuer, _, _, _ := newTestIssuer(t)
		form := preAuthorizedForm("code", "")
		form.Set(oauth.GrantTypeParam, oauth.AuthorizationCodeGrantType)

		_, err := issuer.HandleTokenRequest(ctx, form)

		assert.Equal(t, oauth.OAuth2Error{
			Code:        oauth.UnsupportedGrantType,
			Description: "unsupported grant type: " + oauth.AuthorizationCodeGrantType,
		}, err)
	})
	t.Run("registered client not allowed to use grant type", func(t *testing.T) {
		issuer, store, _, _ := newTestIssuer(t)
		issuer.RegisterClient(Client{ID: "restricted", GrantTypes: []string{oauth.AuthorizationCodeGrantType}})
		require.NoError(t, store.Save(ctx, testRecord("code")))
		form := preAuthorizedForm("code", "")
		form.Set(oauth.ClientIDParam, "restricted")

		_, err := issuer.HandleTokenRequest(ctx, form)

		var oauthErr oauth.OAuth2Error
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, oauth.InvalidClient, oauthErr.Code)
	})
}

// toFirstAudience normalizes the aud claim, which jwx returns as a string slice.
func toFirstAudience(aud interface{}) string {
	switch v := aud.(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

func TestIssuer_HandleCredentialRequest(t *testing.T) {
	ctx := context.Background()

	// redeemToken runs the full token endpoint pipeline and returns the access token and c_nonce.
	redeemToken := func(t *testing.T, issuer *Issuer, store Store) (string, string) {
		require.NoError(t, store.Save(ctx, testRecord("code")))
		response, err := issuer.HandleTokenRequest(ctx, preAuthorizedForm("code", ""))
		require.NoError(t, err)
		return response.AccessToken, *response.CNonce
	}

	credentialRequest := func(t *testing.T, nonce string) CredentialRequest {
		proofJwt := testProofJwt(t, map[string]interface{}{
			"aud":   testIssuerURL,
			"nonce": nonce,
		}, nil)
		return CredentialRequest{
			CredentialConfigurationId: "test_credential",
			Proofs:                    CredentialRequestProofs{Jwt: []string{proofJwt}},
		}
	}

	t.Run("SD-JWT VC is issued", func(t *testing.T) {
		issuer, store, _, _ := newTestIssuer(t)
		accessToken, nonce := redeemToken(t, issuer, store)

		response, err := issuer.HandleCredentialRequest(ctx, accessToken, credentialRequest(t, nonce))

		require.NoError(t, err)
		require.Len(t, response.Credentials, 1)
		// combined SD-JWT format: JWT followed by tilde-separated disclosures
		assert.True(t, strings.HasSuffix(response.Credentials[0].Credential, "~"))
		assert.GreaterOrEqual(t, strings.Count(response.Credentials[0].Credential, "~"), 2)
	})
	t.Run("invalid access token", func(t *testing.T) {
		issuer, _, _, _ := newTestIssuer(t)

		_, err := issuer.HandleCredentialRequest(ctx, "garbage", credentialRequest(t, "nonce"))

		var oauthErr oauth.OAuth2Error
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, oauth.InvalidToken, oauthErr.Code)
	})
	t.Run("unknown credential configuration", func(t *testing.T) {
		issuer, store, _, _ := newTestIssuer(t)
		accessToken, nonce := redeemToken(t, issuer, store)
		request := credentialRequest(t, nonce)
		request.CredentialConfigurationId = "unknown"

		_, err := issuer.HandleCredentialRequest(ctx, accessToken, request)

		assert.Equal(t, oauth.OAuth2Error{
			Code:        oauth.UnsupportedCredentialConfiguration,
			Description: "unknown credential configuration: unknown",
		}, err)
	})
	t.Run("no handler for format", func(t *testing.T) {
		issuer, store, _, _ := newTestIssuer(t)
		issuer.RegisterConfiguration(CredentialConfiguration{ID: "mdoc_credential", Format: MsoMdocFormat})
		accessToken, nonce := redeemToken(t, issuer, store)
		request := credentialRequest(t, nonce)
		request.CredentialConfigurationId = "mdoc_credential"

		_, err := issuer.HandleCredentialRequest(ctx, accessToken, request)

		assert.Equal(t, oauth.OAuth2Error{
			Code:        oauth.UnsupportedCredentialConfiguration,
			Description: "No handler for format mso_mdoc",
		}, err)
	})
	t.Run("proof bound to wrong nonce", func(t *testing.T) {
		issuer, store, _, _ := newTestIssuer(t)
		accessToken, _ := redeemToken(t, issuer, store)

		_, err := issuer.HandleCredentialRequest(ctx, accessToken, credentialRequest(t, "wrong-nonce"))

		var oauthErr oauth.OAuth2Error
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, oauth.InvalidProof, oauthErr.Code)
	})
	t.Run("signer error folds into invalid_request", func(t *testing.T) {
		issuer, store, _, _ := newTestIssuer(t)
		issuer.RegisterCredentialHandler(failingHandler{err: errors.New("key unavailable")})
		issuer.RegisterConfiguration(CredentialConfiguration{ID: "failing", Format: "failing_format"})
		accessToken, nonce := redeemToken(t, issuer, store)
		request := credentialRequest(t, nonce)
		request.CredentialConfigurationId = "failing"

		_, err := issuer.HandleCredentialRequest(ctx, accessToken, request)

		var oauthErr oauth.OAuth2Error
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, oauth.InvalidRequest, oauthErr.Code)
		assert.Contains(t, oauthErr.Description, "key unavailable")
	})
	t.Run("signer panic folds into invalid_request", func(t *testing.T) {
		issuer, store, _, _ := newTestIssuer(t)
		issuer.RegisterCredentialHandler(failingHandler{panicMessage: "boom"})
		issuer.RegisterConfiguration(CredentialConfiguration{ID: "failing", Format: "failing_format"})
		accessToken, nonce := redeemToken(t, issuer, store)
		request := credentialRequest(t, nonce)
		request.CredentialConfigurationId = "failing"

		_, err := issuer.HandleCredentialRequest(ctx, accessToken, request)

		var oauthErr oauth.OAuth2Error
		require.ErrorAs(t, err, &oauthErr)
		assert.Equal(t, oauth.InvalidRequest, oauthErr.Code)
	})
}

type failingHandler struct {
	err          error
	panicMessage string
}

func (h failingHandler) Format() CredentialFormat {
	return "failing_format"
}

func (h failingHandler) Sign(_ context.Context, _ CredentialConfiguration, _ ProofOfPossession, _ map[string]interface{}) (string, error) {
	if h.panicMessage != "" {
		panic(h.panicMessage)
	}
	return "", h.err
}

func TestIssuer_Metadata(t *testing.T) {
	issuer, _, _, _ := newTestIssuer(t)

	t.Run("credential issuer metadata", func(t *testing.T) {
		metadata := issuer.Metadata()

		assert.Equal(t, testIssuerURL, metadata.CredentialIssuer)
		assert.Equal(t, testIssuerURL+"/credential", metadata.CredentialEndpoint)
		assert.Equal(t, map[string]any{"format": "vc+sd-jwt"}, metadata.CredentialConfigurationsSupported["test_credential"])
	})
	t.Run("authorization server metadata", func(t *testing.T) {
		metadata := issuer.AuthorizationServerMetadata()

		assert.Equal(t, testIssuerURL, metadata.Issuer)
		assert.Equal(t, testIssuerURL+"/token", metadata.TokenEndpoint)
		assert.Equal(t, []string{oauth.PreAuthorizedCodeGrantType}, metadata.GrantTypesSupported)
		assert.True(t, metadata.PreAuthorizedGrantAnonymousAccessSupported)
	})
}
