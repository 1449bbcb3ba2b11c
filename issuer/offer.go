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
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nuts-foundation/openid4vci-issuer/issuer/log"
	"github.com/nuts-foundation/openid4vci-issuer/oauth"
)

// OfferRequest describes the credential offer to create for a subject.
type OfferRequest struct {
	// Subject is the wallet holder the credential will be issued to. Required.
	Subject string
	// ClientID restricts redemption to the given client, if set.
	ClientID string
	// UserPin requires the wallet user to enter this PIN on redemption, if set.
	UserPin string
	// Scopes are granted to the access token on redemption.
	Scopes []string
	// Audience are the granted audiences for the access token.
	Audience []string
	// CredentialConfigurationIds name the offered credential configurations. Required.
	CredentialConfigurationIds []string
}

// PreAuthorizedCodeIssuer mints pre-authorized codes and builds credential offers,
// the issuer-initiated start of the pre-authorized code flow.
type PreAuthorizedCodeIssuer struct {
	issuerIdentifier string
	store            Store
	codeTTL          time.Duration
	cNonceTTL        time.Duration
}

// NewPreAuthorizedCodeIssuer creates a PreAuthorizedCodeIssuer storing its records in the given store.
func NewPreAuthorizedCodeIssuer(issuerIdentifier string, store Store, codeTTL time.Duration, cNonceTTL time.Duration) *PreAuthorizedCodeIssuer {
	return &PreAuthorizedCodeIssuer{
		issuerIdentifier: issuerIdentifier,
		store:            store,
		codeTTL:          codeTTL,
		cNonceTTL:        cNonceTTL,
	}
}

// Offer mints a pre-authorized code for the subject and returns the credential offer
// to hand to the wallet.
func (p *PreAuthorizedCodeIssuer) Offer(ctx context.Context, request OfferRequest) (*oauth.CredentialOffer, error) {
	if request.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if len(request.CredentialConfigurationIds) == 0 {
		return nil, fmt.Errorf("at least one credential configuration is required")
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	record := PreAuthorizedCodeRecord{
		Code:            code,
		ClientID:        request.ClientID,
		GrantedScopes:   request.Scopes,
		GrantedAudience: request.Audience,
		Session: Session{
			Subject: request.Subject,
			ExpiresAt: map[TokenType]time.Time{
				CNonceTokenType: now.Add(p.cNonceTTL),
			},
		},
		CredentialNonce:          uuid.NewString(),
		CredentialNonceExpiresAt: now.Add(p.cNonceTTL),
		ExpiresAt:                now.Add(p.codeTTL),
	}
	var txCode *oauth.TxCodeSpec
	if request.UserPin != "" {
		record.UserPinRequired = true
		record.UserPin = HashUserPin(request.UserPin)
		txCode = &oauth.TxCodeSpec{
			InputMode:   "numeric",
			Length:      len(request.UserPin),
			Description: "PIN",
		}
	}

	if err := p.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("unable to store pre-authorized code: %w", err)
	}
	log.Logger().
		WithField("subject", request.Subject).
		WithField("client_id", request.ClientID).
		Debug("Minted pre-authorized code")

	return &oauth.CredentialOffer{
		CredentialIssuer:           p.issuerIdentifier,
		CredentialConfigurationIds: request.CredentialConfigurationIds,
		Grants: map[string]oauth.CredentialOfferGrant{
			oauth.PreAuthorizedCodeGrantType: {
				PreAuthorizedCode: code,
				TxCode:            txCode,
			},
		},
	}, nil
}

// generateCode returns a high-entropy opaque code (256 bits, base64url).
func generateCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("unable to generate pre-authorized code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
