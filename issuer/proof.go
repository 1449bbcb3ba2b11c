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
	"errors"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/nuts-foundation/openid4vci-issuer/oauth"
)

// ProofTypeJWT is the required typ header of a JWT proof of possession.
const ProofTypeJWT = "openid4vci-proof+jwt"

// ProofOfPossession is a validated proof of possession from a credential request.
// The proof signature itself is not verified here: the holder's key is not
// resolvable by the issuer core and verification is delegated to the format signer
// or an out-of-band trust layer.
type ProofOfPossession struct {
	// Jwt is the raw compact proof JWT, passed through to the format signer.
	Jwt string
	// Kid is the kid protected header, identifying the holder key.
	Kid string
	// HolderKey is the jwk protected header, if present.
	HolderKey jwk.Key
}

// ValidateProof extracts and validates the proof of possession of a credential request.
// It checks the typ header, the audience and the c_nonce binding.
// Protocol violations are returned as oauth.OAuth2Error.
func ValidateProof(request CredentialRequest, issuer string, expectedNonce string) (*ProofOfPossession, error) {
	if len(request.Proofs.Jwt) == 0 {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidRequest,
			Description: "Missing JWT proof in proofs",
		}
	}
	rawProof := request.Proofs.Jwt[0]

	message, err := jws.ParseString(rawProof)
	if err != nil {
		return nil, oauth.OAuth2Error{
			Code:          oauth.InvalidProof,
			Description:   "proof is not a valid JWT",
			InternalError: err,
		}
	}
	if len(message.Signatures()) != 1 {
		return nil, oauth.OAuth2Error{
			Code:          oauth.InvalidProof,
			Description:   "proof is not a valid JWT",
			InternalError: errors.New("incorrect number of signatures"),
		}
	}
	headers := message.Signatures()[0].ProtectedHeaders()
	if headers.Type() != ProofTypeJWT {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidProof,
			Description: "proof typ header must be " + ProofTypeJWT,
		}
	}

	// claims are read without signature verification, see ProofOfPossession
	token, err := jwt.ParseString(rawProof, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, oauth.OAuth2Error{
			Code:          oauth.InvalidProof,
			Description:   "proof is not a valid JWT",
			InternalError: err,
		}
	}
	if !containsAudience(token.Audience(), issuer) {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidProof,
			Description: "proof audience does not match credential issuer",
		}
	}
	if expectedNonce != "" {
		nonce, _ := token.Get("nonce")
		if nonce != expectedNonce {
			return nil, oauth.OAuth2Error{
				Code:        oauth.InvalidProof,
				Description: "proof nonce does not match c_nonce",
			}
		}
	}

	return &ProofOfPossession{
		Jwt:       rawProof,
		Kid:       headers.KeyID(),
		HolderKey: headers.JWK(),
	}, nil
}

func containsAudience(audience []string, issuer string) bool {
	for _, aud := range audience {
		if aud == issuer {
			return true
		}
	}
	return false
}
