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
	"time"

	"github.com/nuts-foundation/openid4vci-issuer/issuer/log"
	"github.com/nuts-foundation/openid4vci-issuer/oauth"
)

// invalidCodeDescription is deliberately identical for unknown, expired and
// already redeemed codes, so clients cannot probe which codes ever existed.
const invalidCodeDescription = "Pre-authorized code is invalid or has already been used"

// TokenResult is the outcome of a successfully handled grant.
type TokenResult struct {
	// Request is the enriched request: session bound, scopes and audience granted,
	// grant type marked as handled.
	Request AccessTokenRequest
	// CNonce is the credential nonce the wallet must bind its proof to, if any.
	CNonce string
	// CNonceExpiresIn is the remaining c_nonce validity in seconds, never negative.
	CNonceExpiresIn int
	// PreAuthorizedCode is the redeemed code, recorded in the access token claims.
	PreAuthorizedCode string
}

// GrantHandler handles a single grant type on the token endpoint.
// Protocol failures are returned as oauth.OAuth2Error values.
type GrantHandler interface {
	// GrantType returns the grant_type value this handler serves.
	GrantType() string
	// Handle validates the grant and enriches the request.
	Handle(ctx context.Context, request AccessTokenRequest) (*TokenResult, error)
}

var _ GrantHandler = (*PreAuthorizedCodeHandler)(nil)

// PreAuthorizedCodeHandler implements the OpenID4VCI pre-authorized code grant.
type PreAuthorizedCodeHandler struct {
	store Store
}

// NewPreAuthorizedCodeHandler creates the grant handler redeeming codes from the given store.
func NewPreAuthorizedCodeHandler(store Store) *PreAuthorizedCodeHandler {
	return &PreAuthorizedCodeHandler{store: store}
}

func (h *PreAuthorizedCodeHandler) GrantType() string {
	return oauth.PreAuthorizedCodeGrantType
}

// Handle redeems a pre-authorized code.
//
// The PIN is checked against a non-consuming read first: a wrong or missing PIN
// must not burn the code, the wallet may re-prompt the user and retry.
// Only after the PIN passes is the code atomically consumed, so of concurrent
// redeemers exactly one wins and the others fold into invalid_grant.
func (h *PreAuthorizedCodeHandler) Handle(ctx context.Context, request AccessTokenRequest) (*TokenResult, error) {
	if !request.RequestsGrantType(oauth.PreAuthorizedCodeGrantType) {
		return nil, oauth.OAuth2Error{
			Code:        oauth.UnsupportedGrantType,
			Description: "grant type not requested",
		}
	}

	code := request.FormValue(oauth.PreAuthorizedCodeParam)
	if code == "" {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidRequest,
			Description: "missing pre-authorized_code parameter",
		}
	}

	record, err := h.store.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidGrant,
			Description: invalidCodeDescription,
		}
	}

	userPin := request.FormValue(oauth.UserPinParam)
	if record.UserPinRequired {
		if !verifyUserPin(record.UserPin, userPin) {
			log.Logger().WithField("client_id", record.ClientID).Info("Pre-authorized code redemption failed: wrong or missing user PIN")
			return nil, oauth.OAuth2Error{
				Code:        oauth.InvalidGrant,
				Description: "Invalid or missing user PIN",
			}
		}
	} else if userPin != "" {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidRequest,
			Description: "user PIN provided but not required",
		}
	}

	record, err = h.store.Consume(ctx, code)
	if err != nil {
		return nil, err
	}
	if record == nil {
		// lost the race against a concurrent redeemer
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidGrant,
			Description: invalidCodeDescription,
		}
	}

	if record.Session.Subject == "" {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidRequest,
			Description: "subject is required in session",
		}
	}

	if record.ClientID != "" {
		request = request.WithClient(Client{
			ID:         record.ClientID,
			GrantTypes: []string{oauth.PreAuthorizedCodeGrantType},
		})
	}
	request = request.
		WithSession(record.Session).
		WithGrantedScopes(record.GrantedScopes).
		WithGrantedAudience(record.GrantedAudience).
		WithHandledGrantType(oauth.PreAuthorizedCodeGrantType)

	result := TokenResult{
		Request:           request,
		PreAuthorizedCode: code,
	}
	if record.CredentialNonce != "" {
		result.CNonce = record.CredentialNonce
		expiresIn := int(time.Until(record.CredentialNonceExpiresAt).Seconds())
		if expiresIn < 0 {
			expiresIn = 0
		}
		result.CNonceExpiresIn = expiresIn
	}
	return &result, nil
}
