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

package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrUnsupportedSigningKey is returned when an unsupported key type is used to sign.
var ErrUnsupportedSigningKey = errors.New("signing key algorithm not supported")

// SignatureAlgorithm returns the JWS signature algorithm for the given public key.
func SignatureAlgorithm(key crypto.PublicKey) (jwa.SignatureAlgorithm, error) {
	switch k := key.(type) {
	case *rsa.PublicKey:
		return jwa.PS256, nil
	case *ecdsa.PublicKey:
		switch k.Curve {
		case elliptic.P256():
			return jwa.ES256, nil
		case elliptic.P384():
			return jwa.ES384, nil
		case elliptic.P521():
			return jwa.ES512, nil
		default:
			return "", ErrUnsupportedSigningKey
		}
	case ed25519.PublicKey:
		return jwa.EdDSA, nil
	default:
		return "", ErrUnsupportedSigningKey
	}
}

// SignJWT creates a compact signed JWT with the given claims using key.
// The kid header is always set from the key, headers can add or override protected headers (e.g. typ).
func SignJWT(key Key, claims map[string]interface{}, headers map[string]interface{}) (string, error) {
	alg, err := SignatureAlgorithm(key.Public())
	if err != nil {
		return "", err
	}
	token := jwt.New()
	for claim, value := range claims {
		if err := token.Set(claim, value); err != nil {
			return "", fmt.Errorf("unable to set claim %s: %w", claim, err)
		}
	}
	hdrs := jws.NewHeaders()
	if err := hdrs.Set(jws.KeyIDKey, key.KID()); err != nil {
		return "", err
	}
	for header, value := range headers {
		if err := hdrs.Set(header, value); err != nil {
			return "", fmt.Errorf("unable to set header %s: %w", header, err)
		}
	}
	signed, err := jwt.Sign(token, jwt.WithKey(alg, key.Signer(), jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// JWTKidAlg parses a compact JWT without validating it and returns the kid and alg headers.
func JWTKidAlg(tokenString string) (string, jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(tokenString)
	if err != nil {
		return "", "", err
	}
	if len(message.Signatures()) != 1 {
		return "", "", errors.New("incorrect number of signatures in JWT")
	}
	hdrs := message.Signatures()[0].ProtectedHeaders()
	return hdrs.KeyID(), hdrs.Algorithm(), nil
}

// PublicKeyFunc resolves a public key based on a kid.
type PublicKeyFunc func(kid string) (crypto.PublicKey, error)

// ParseJWT parses a compact JWT, verifies its signature with the resolved public key and validates standard claims.
func ParseJWT(tokenString string, f PublicKeyFunc, options ...jwt.ParseOption) (jwt.Token, error) {
	kid, alg, err := JWTKidAlg(tokenString)
	if err != nil {
		return nil, err
	}
	key, err := f(kid)
	if err != nil {
		return nil, err
	}
	options = append(options, jwt.WithKey(alg, key), jwt.WithValidate(true))
	return jwt.ParseString(tokenString, options...)
}
