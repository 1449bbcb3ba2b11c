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
	stdcrypto "crypto"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/nuts-foundation/openid4vci-issuer/crypto"
	"github.com/nuts-foundation/openid4vci-issuer/oauth"
)

// AccessTokenService creates signed JWT access tokens.
// The signing key is resolved per token, so key rollover does not require a restart.
type AccessTokenService struct {
	keyResolver crypto.KeyResolver
	signingKID  string
}

// NewAccessTokenService creates an AccessTokenService signing with the given key.
func NewAccessTokenService(keyResolver crypto.KeyResolver, signingKID string) *AccessTokenService {
	return &AccessTokenService{
		keyResolver: keyResolver,
		signingKID:  signingKID,
	}
}

// CreateAccessToken signs the given claims into a compact JWT.
func (s *AccessTokenService) CreateAccessToken(ctx context.Context, claims map[string]interface{}) (string, error) {
	key, err := s.keyResolver.Resolve(ctx, s.signingKID)
	if err != nil {
		return "", fmt.Errorf("unable to resolve access token signing key: %w", err)
	}
	return crypto.SignJWT(key, claims, map[string]interface{}{"typ": "JWT"})
}

// AccessTokenVerifier verifies JWT access tokens on the credential endpoint.
type AccessTokenVerifier struct {
	keyResolver crypto.KeyResolver
	issuer      string
}

// NewAccessTokenVerifier creates an AccessTokenVerifier for tokens issued by the given issuer.
func NewAccessTokenVerifier(keyResolver crypto.KeyResolver, issuer string) *AccessTokenVerifier {
	return &AccessTokenVerifier{
		keyResolver: keyResolver,
		issuer:      issuer,
	}
}

// Verify parses and verifies the access token and returns its claims.
// Failures map to the invalid_token error, the underlying cause is only logged.
func (v *AccessTokenVerifier) Verify(ctx context.Context, tokenString string) (map[string]interface{}, error) {
	token, err := crypto.ParseJWT(tokenString, func(kid string) (stdcrypto.PublicKey, error) {
		key, err := v.keyResolver.Resolve(ctx, kid)
		if err != nil {
			return nil, err
		}
		return key.Public(), nil
	}, jwt.WithIssuer(v.issuer))
	if err != nil {
		return nil, oauth.OAuth2Error{
			Code:          oauth.InvalidToken,
			Description:   "access token is invalid",
			InternalError: err,
		}
	}
	claims, err := token.AsMap(ctx)
	if err != nil {
		return nil, oauth.OAuth2Error{
			Code:          oauth.InvalidToken,
			Description:   "access token is invalid",
			InternalError: err,
		}
	}
	return claims, nil
}
