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

	"github.com/nuts-foundation/openid4vci-issuer/credential"
	"github.com/nuts-foundation/openid4vci-issuer/crypto"
)

var _ CredentialHandler = (*SDJwtVCHandler)(nil)
var _ CredentialHandler = (*JwtVCHandler)(nil)
var _ CredentialHandler = (*MsoMdocHandler)(nil)

// subjectClaims splits the prepared credential data into the subject and the remaining claims.
func subjectClaims(credentialData map[string]interface{}) (string, map[string]interface{}) {
	subject, _ := credentialData["sub"].(string)
	claims := make(map[string]interface{}, len(credentialData))
	for name, value := range credentialData {
		if name == "sub" {
			continue
		}
		claims[name] = value
	}
	return subject, claims
}

// SDJwtVCHandler issues credentials in the IETF SD-JWT VC format.
type SDJwtVCHandler struct {
	keyResolver crypto.KeyResolver
	signingKID  string
	issuer      string
}

// NewSDJwtVCHandler creates the SD-JWT VC format handler.
func NewSDJwtVCHandler(keyResolver crypto.KeyResolver, signingKID string, issuer string) *SDJwtVCHandler {
	return &SDJwtVCHandler{keyResolver: keyResolver, signingKID: signingKID, issuer: issuer}
}

func (h *SDJwtVCHandler) Format() CredentialFormat {
	return SDJwtVCFormat
}

func (h *SDJwtVCHandler) Sign(ctx context.Context, cfg CredentialConfiguration, proof ProofOfPossession, credentialData map[string]interface{}) (string, error) {
	key, err := h.keyResolver.Resolve(ctx, h.signingKID)
	if err != nil {
		return "", err
	}
	subject, claims := subjectClaims(credentialData)
	return credential.SignSDJwtVC(key, h.issuer, cfg.ID, subject, claims, proof.HolderKey)
}

// JwtVCHandler issues credentials in the W3C JWT-VC format.
type JwtVCHandler struct {
	keyResolver crypto.KeyResolver
	signingKID  string
	issuer      string
}

// NewJwtVCHandler creates the W3C JWT-VC format handler.
func NewJwtVCHandler(keyResolver crypto.KeyResolver, signingKID string, issuer string) *JwtVCHandler {
	return &JwtVCHandler{keyResolver: keyResolver, signingKID: signingKID, issuer: issuer}
}

func (h *JwtVCHandler) Format() CredentialFormat {
	return JwtVCFormat
}

func (h *JwtVCHandler) Sign(ctx context.Context, cfg CredentialConfiguration, _ ProofOfPossession, credentialData map[string]interface{}) (string, error) {
	key, err := h.keyResolver.Resolve(ctx, h.signingKID)
	if err != nil {
		return "", err
	}
	subject, claims := subjectClaims(credentialData)
	return credential.SignJwtVC(key, h.issuer, cfg.ID, subject, claims)
}

// MsoMdocHandler issues credentials in the ISO mdoc format.
// The credential configuration ID doubles as the mdoc docType and namespace.
type MsoMdocHandler struct {
	keyResolver crypto.KeyResolver
	signingKID  string
	validity    time.Duration
}

// NewMsoMdocHandler creates the mdoc format handler.
func NewMsoMdocHandler(keyResolver crypto.KeyResolver, signingKID string, validity time.Duration) *MsoMdocHandler {
	return &MsoMdocHandler{keyResolver: keyResolver, signingKID: signingKID, validity: validity}
}

func (h *MsoMdocHandler) Format() CredentialFormat {
	return MsoMdocFormat
}

func (h *MsoMdocHandler) Sign(ctx context.Context, cfg CredentialConfiguration, _ ProofOfPossession, credentialData map[string]interface{}) (string, error) {
	key, err := h.keyResolver.Resolve(ctx, h.signingKID)
	if err != nil {
		return "", err
	}
	return credential.SignMsoMdoc(key, cfg.ID, cfg.ID, h.validity, credentialData)
}
