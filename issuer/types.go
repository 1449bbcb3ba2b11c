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

// Package issuer implements the OpenID4VCI credential issuer core:
// the pre-authorized code grant, the token endpoint pipeline and the credential endpoint.
package issuer

import (
	"net/url"
	"time"
)

// TokenType identifies a token kind within a session (e.g. access token, c_nonce).
type TokenType string

const (
	// AccessTokenType marks the session expiry of the access token.
	AccessTokenType TokenType = "access_token"
	// CNonceTokenType marks the session expiry of the credential nonce.
	CNonceTokenType TokenType = "c_nonce"
)

// Client is a registered OAuth2 client.
type Client struct {
	// ID is the client identifier.
	ID string `json:"id"`
	// RedirectURIs lists the URIs the client may use in redirect-based flows.
	RedirectURIs []string `json:"redirect_uris,omitempty"`
	// GrantTypes lists the grant types the client is allowed to use.
	GrantTypes []string `json:"grant_types,omitempty"`
	// ResponseTypes lists the response types the client is allowed to use.
	ResponseTypes []string `json:"response_types,omitempty"`
}

// AllowsGrantType returns whether the client is registered for the given grant type.
// A client without registered grant types allows any.
func (c Client) AllowsGrantType(grantType string) bool {
	if len(c.GrantTypes) == 0 {
		return true
	}
	for _, curr := range c.GrantTypes {
		if curr == grantType {
			return true
		}
	}
	return false
}

// Session carries the authenticated subject a pre-authorized code was issued for.
type Session struct {
	// Subject identifies the wallet holder the credential will be issued to.
	Subject string `json:"subject"`
	// ExpiresAt holds per-token expiry moments for tokens derived from this session.
	ExpiresAt map[TokenType]time.Time `json:"expires_at,omitempty"`
}

// PreAuthorizedCodeRecord is the server-side state behind a pre-authorized code.
// It is redeemable at most once; an expired record behaves as if it never existed.
type PreAuthorizedCodeRecord struct {
	// Code is the opaque pre-authorized code handed to the wallet in the credential offer.
	Code string `json:"code"`
	// ClientID identifies the client the code was issued to, if any.
	ClientID string `json:"client_id,omitempty"`
	// UserPinRequired indicates whether redemption requires the user PIN (tx_code).
	UserPinRequired bool `json:"user_pin_required"`
	// UserPin holds the hex-encoded SHA-256 hash of the PIN, when one is required.
	UserPin string `json:"user_pin,omitempty"`
	// GrantedScopes are the scopes granted when the code is redeemed.
	GrantedScopes []string `json:"granted_scopes,omitempty"`
	// GrantedAudience are the audiences granted when the code is redeemed.
	GrantedAudience []string `json:"granted_audience,omitempty"`
	// Session carries the subject the credential will be issued to.
	Session Session `json:"session"`
	// CredentialNonce is the c_nonce the wallet must bind its proof of possession to.
	CredentialNonce string `json:"c_nonce,omitempty"`
	// CredentialNonceExpiresAt is the expiry moment of CredentialNonce.
	CredentialNonceExpiresAt time.Time `json:"c_nonce_expires_at,omitempty"`
	// ExpiresAt is the expiry moment of the code itself.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired returns whether the record is past its expiry at the given moment.
func (r PreAuthorizedCodeRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// AccessTokenRequest is the parsed token endpoint request.
// It is an immutable value: the With* methods return modified copies,
// so grant handlers never mutate the request they were given.
type AccessTokenRequest struct {
	client           Client
	grantTypes       []string
	requestForm      url.Values
	session          *Session
	grantedScopes    []string
	grantedAudience  []string
	handledGrantType string
}

// NewAccessTokenRequest builds an AccessTokenRequest from the submitted form.
func NewAccessTokenRequest(client Client, grantTypes []string, form url.Values) AccessTokenRequest {
	return AccessTokenRequest{
		client:      client,
		grantTypes:  grantTypes,
		requestForm: form,
	}
}

// Client returns the requesting client.
func (r AccessTokenRequest) Client() Client { return r.client }

// GrantTypes returns the grant types requested by the client.
func (r AccessTokenRequest) GrantTypes() []string { return r.grantTypes }

// FormValue returns the first value of the named form parameter, or the empty string.
func (r AccessTokenRequest) FormValue(name string) string { return r.requestForm.Get(name) }

// Session returns the session bound to the request, or nil when none is bound yet.
func (r AccessTokenRequest) Session() *Session { return r.session }

// GrantedScopes returns the scopes granted so far.
func (r AccessTokenRequest) GrantedScopes() []string { return r.grantedScopes }

// GrantedAudience returns the audiences granted so far.
func (r AccessTokenRequest) GrantedAudience() []string { return r.grantedAudience }

// HandledGrantType returns the grant type a handler marked as handled, or the empty string.
func (r AccessTokenRequest) HandledGrantType() string { return r.handledGrantType }

// RequestsGrantType returns whether the client requested the given grant type.
func (r AccessTokenRequest) RequestsGrantType(grantType string) bool {
	for _, curr := range r.grantTypes {
		if curr == grantType {
			return true
		}
	}
	return false
}

// WithClient returns a copy with the client replaced.
func (r AccessTokenRequest) WithClient(client Client) AccessTokenRequest {
	r.client = client
	return r
}

// WithSession returns a copy with the session bound.
func (r AccessTokenRequest) WithSession(session Session) AccessTokenRequest {
	r.session = &session
	return r
}

// WithGrantedScopes returns a copy with the granted scopes set.
func (r AccessTokenRequest) WithGrantedScopes(scopes []string) AccessTokenRequest {
	r.grantedScopes = scopes
	return r
}

// WithGrantedAudience returns a copy with the granted audience set.
func (r AccessTokenRequest) WithGrantedAudience(audience []string) AccessTokenRequest {
	r.grantedAudience = audience
	return r
}

// WithHandledGrantType returns a copy marked as handled by the given grant type.
func (r AccessTokenRequest) WithHandledGrantType(grantType string) AccessTokenRequest {
	r.handledGrantType = grantType
	return r
}

// CredentialFormat identifies a credential wire format on the credential endpoint.
type CredentialFormat string

const (
	// SDJwtVCFormat is the IETF SD-JWT VC format.
	SDJwtVCFormat CredentialFormat = "vc+sd-jwt"
	// JwtVCFormat is the W3C VC as JWT format.
	JwtVCFormat CredentialFormat = "jwt_vc_json"
	// MsoMdocFormat is the ISO mdoc (mobile document) format.
	MsoMdocFormat CredentialFormat = "mso_mdoc"
)

// CredentialConfiguration describes one issuable credential configuration.
type CredentialConfiguration struct {
	// ID is the credential_configuration_id as published in the issuer metadata.
	ID string `json:"id"`
	// Format is the credential wire format.
	Format CredentialFormat `json:"format"`
}

// CredentialRequestProofs holds the proofs parameter of a credential request.
type CredentialRequestProofs struct {
	// Jwt contains proof-of-possession JWTs.
	Jwt []string `json:"jwt,omitempty"`
}

// CredentialRequest is the parsed credential endpoint request.
type CredentialRequest struct {
	Format                    CredentialFormat        `json:"format,omitempty"`
	Proofs                    CredentialRequestProofs `json:"proofs,omitempty"`
	CredentialConfigurationId string                  `json:"credential_configuration_id,omitempty"`
}

// IssuedCredential wraps a single issued credential in its wire encoding.
type IssuedCredential struct {
	Credential string `json:"credential"`
}

// CredentialResponse is the credential endpoint response.
type CredentialResponse struct {
	Credentials []IssuedCredential `json:"credentials"`
}
