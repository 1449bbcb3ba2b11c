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

// Package oauth contains generic OAuth2 and OpenID4VCI wire types, variables and constants.
package oauth

// TokenResponse is the OAuth2 access token response, including the
// OpenID4VCI extension parameters for credential issuance.
type TokenResponse struct {
	AccessToken     string  `json:"access_token"`
	TokenType       string  `json:"token_type"`
	ExpiresIn       *int    `json:"expires_in,omitempty"`
	Scope           *string `json:"scope,omitempty"`
	CNonce          *string `json:"c_nonce,omitempty"`
	CNonceExpiresIn *int    `json:"c_nonce_expires_in,omitempty"`
}

// metadata endpoints
const (
	// AuthzServerWellKnown is the well-known base path for the oauth authorization server metadata as defined in RFC8414
	AuthzServerWellKnown = "/.well-known/oauth-authorization-server"
	// OpenIdCredIssuerWellKnown is the well-known base path for the openID credential issuer metadata as defined in
	// the OpenID4VCI specification
	OpenIdCredIssuerWellKnown = "/.well-known/openid-credential-issuer"
)

// oauth parameter keys
const (
	// ClientIDParam is the parameter name for the client_id parameter. (RFC6749)
	ClientIDParam = "client_id"
	// CNonceParam is the parameter name for the c_nonce parameter. (OpenID4VCI)
	CNonceParam = "c_nonce"
	// GrantTypeParam is the parameter name for the grant_type parameter. (RFC6749)
	GrantTypeParam = "grant_type"
	// PreAuthorizedCodeParam is the parameter name for the pre-authorized_code parameter. (OpenID4VCI)
	PreAuthorizedCodeParam = "pre-authorized_code"
	// ScopeParam is the parameter name for the scope parameter. (RFC6749)
	ScopeParam = "scope"
	// UserPinParam is the parameter name for the user_pin parameter. (OpenID4VCI)
	UserPinParam = "user_pin"
)

// grant types
const (
	// AuthorizationCodeGrantType is the grant_type for the authorization_code grant type. (RFC6749)
	AuthorizationCodeGrantType = "authorization_code"
	// PreAuthorizedCodeGrantType is the grant_type for the pre-authorized_code grant type. (OpenID4VCI)
	PreAuthorizedCodeGrantType = "urn:ietf:params:oauth:grant-type:pre-authorized_code"
)

const (
	// ErrorParam is the parameter name for the error parameter
	ErrorParam = "error"
	// ErrorDescriptionParam is the parameter name for the error_description parameter
	ErrorDescriptionParam = "error_description"
)

// BearerTokenType is the token_type of access tokens issued by the token endpoint.
const BearerTokenType = "bearer"

// AuthorizationServerMetadata defines the OAuth Authorization Server metadata.
// Specified by https://www.rfc-editor.org/rfc/rfc8414.txt
type AuthorizationServerMetadata struct {
	// Issuer defines the authorization server's identifier, which is a URL that uses the "https" scheme.
	Issuer string `json:"issuer"`
	// TokenEndpoint defines the URL of the authorization server's token endpoint [RFC6749].
	TokenEndpoint string `json:"token_endpoint"`
	// GrantTypesSupported is a list of the OAuth 2.0 grant type values that this authorization server supports.
	GrantTypesSupported []string `json:"grant_types_supported,omitempty"`
	// PreAuthorizedGrantAnonymousAccessSupported indicates whether anonymous access
	// (token requests without client_id) is allowed for the pre-authorized code grant.
	PreAuthorizedGrantAnonymousAccessSupported bool `json:"pre-authorized_grant_anonymous_access_supported,omitempty"`
}

// OpenIDCredentialIssuerMetadata represents the metadata of an OpenID credential issuer,
// served on the openid-credential-issuer well-known endpoint.
type OpenIDCredentialIssuerMetadata struct {
	CredentialIssuer                  string                     `json:"credential_issuer"`
	CredentialEndpoint                string                     `json:"credential_endpoint"`
	AuthorizationServers              []string                   `json:"authorization_servers,omitempty"`
	CredentialConfigurationsSupported map[string]map[string]any  `json:"credential_configurations_supported,omitempty"`
	Display                           []map[string]string        `json:"display,omitempty"`
}

// CredentialOffer is the credential offer as specified by OpenID4VCI, handed to
// the wallet (by value or by reference) to start the pre-authorized code flow.
type CredentialOffer struct {
	CredentialIssuer           string                          `json:"credential_issuer"`
	CredentialConfigurationIds []string                        `json:"credential_configuration_ids"`
	Grants                     map[string]CredentialOfferGrant `json:"grants,omitempty"`
}

// CredentialOfferGrant describes a grant offered in a CredentialOffer.
type CredentialOfferGrant struct {
	PreAuthorizedCode string      `json:"pre-authorized_code,omitempty"`
	TxCode            *TxCodeSpec `json:"tx_code,omitempty"`
}

// TxCodeSpec hints the wallet about the transaction code (user PIN) it must collect.
type TxCodeSpec struct {
	InputMode   string `json:"input_mode,omitempty"`
	Length      int    `json:"length,omitempty"`
	Description string `json:"description,omitempty"`
}
