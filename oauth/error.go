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

package oauth

import (
	"net/http"
	"strings"
)

// ErrorCode specifies error codes as defined by RFC6749 and the OpenID4VCI specification.
type ErrorCode string

const (
	// InvalidRequest is returned when the request is missing a required parameter,
	// includes an invalid parameter value, or is otherwise malformed.
	InvalidRequest ErrorCode = "invalid_request"
	// InvalidClient is returned when client authentication failed.
	InvalidClient ErrorCode = "invalid_client"
	// InvalidGrant is returned when the provided authorization grant
	// (e.g. pre-authorized code) is invalid, expired or already redeemed,
	// or when a required user PIN is missing or wrong.
	InvalidGrant ErrorCode = "invalid_grant"
	// InvalidToken is returned when the Credential Request contains the wrong
	// access token or the access token is missing.
	InvalidToken ErrorCode = "invalid_token"
	// UnsupportedGrantType is returned when the authorization server does not
	// support the requested grant type.
	UnsupportedGrantType ErrorCode = "unsupported_grant_type"
	// UnsupportedCredentialConfiguration is returned when the credential issuer has no
	// handler registered for the requested credential configuration or format.
	UnsupportedCredentialConfiguration ErrorCode = "unsupported_credential_configuration"
	// InvalidProof is returned when the Credential Request did not contain a proof,
	// or the proof was not bound to the issuer provided c_nonce.
	InvalidProof ErrorCode = "invalid_proof"
	// ServerError is returned when the server encounters an unexpected condition
	// that prevents it from fulfilling the request.
	ServerError ErrorCode = "server_error"
)

// OAuth2Error is an OAuth2/OpenID4VCI protocol error, returned to the client
// as defined by RFC6749 section 5.2.
type OAuth2Error struct {
	// Code is the error code as defined by the OAuth2/OpenID4VCI specifications.
	Code ErrorCode `json:"error"`
	// Description contains the human-readable error_description, returned to the client.
	Description string `json:"error_description,omitempty"`
	// InternalError is the underlying error. It is logged, never returned to the client.
	InternalError error `json:"-"`
}

// Error implements the error interface.
func (e OAuth2Error) Error() string {
	parts := []string{string(e.Code)}
	if e.Description != "" {
		parts = append(parts, e.Description)
	}
	if e.InternalError != nil {
		parts = append(parts, e.InternalError.Error())
	}
	return strings.Join(parts, " - ")
}

// StatusCode returns the HTTP status code corresponding to the error code.
func (e OAuth2Error) StatusCode() int {
	switch e.Code {
	case InvalidToken:
		return http.StatusUnauthorized
	case ServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
