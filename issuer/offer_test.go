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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuts-foundation/openid4vci-issuer/oauth"
)

func TestPreAuthorizedCodeIssuer_Offer(t *testing.T) {
	ctx := context.Background()

	newOfferIssuer := func(t *testing.T) (*PreAuthorizedCodeIssuer, Store) {
		store := NewMemoryStore()
		t.Cleanup(store.Close)
		return NewPreAuthorizedCodeIssuer(testIssuerURL, store, 10*time.Minute, 5*time.Minute), store
	}

	t.Run("offer contains a redeemable code", func(t *testing.T) {
		offerIssuer, store := newOfferIssuer(t)

		offer, err := offerIssuer.Offer(ctx, OfferRequest{
			Subject:                    "did:example:holder",
			ClientID:                   "client",
			Scopes:                     []string{"test_credential"},
			Audience:                   []string{"https://wallet.example.com"},
			CredentialConfigurationIds: []string{"test_credential"},
		})

		require.NoError(t, err)
		assert.Equal(t, testIssuerURL, offer.CredentialIssuer)
		assert.Equal(t, []string{"test_credential"}, offer.CredentialConfigurationIds)

		grant := offer.Grants[oauth.PreAuthorizedCodeGrantType]
		require.NotEmpty(t, grant.PreAuthorizedCode)
		assert.Nil(t, grant.TxCode)

		record, err := store.Get(ctx, grant.PreAuthorizedCode)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "did:example:holder", record.Session.Subject)
		assert.Equal(t, "client", record.ClientID)
		assert.False(t, record.UserPinRequired)
		assert.NotEmpty(t, record.CredentialNonce)
	})
	t.Run("user PIN is stored hashed and hinted in tx_code", func(t *testing.T) {
		offerIssuer, store := newOfferIssuer(t)

		offer, err := offerIssuer.Offer(ctx, OfferRequest{
			Subject:                    "did:example:holder",
			UserPin:                    "123456",
			CredentialConfigurationIds: []string{"test_credential"},
		})

		require.NoError(t, err)
		grant := offer.Grants[oauth.PreAuthorizedCodeGrantType]
		require.NotNil(t, grant.TxCode)
		assert.Equal(t, 6, grant.TxCode.Length)
		assert.Equal(t, "numeric", grant.TxCode.InputMode)

		record, _ := store.Get(ctx, grant.PreAuthorizedCode)
		require.NotNil(t, record)
		assert.True(t, record.UserPinRequired)
		assert.NotEqual(t, "123456", record.UserPin)
		assert.True(t, verifyUserPin(record.UserPin, "123456"))
	})
	t.Run("codes are unique", func(t *testing.T) {
		offerIssuer, _ := newOfferIssuer(t)
		request := OfferRequest{
			Subject:                    "did:example:holder",
			CredentialConfigurationIds: []string{"test_credential"},
		}

		first, err := offerIssuer.Offer(ctx, request)
		require.NoError(t, err)
		second, err := offerIssuer.Offer(ctx, request)
		require.NoError(t, err)

		assert.NotEqual(t,
			first.Grants[oauth.PreAuthorizedCodeGrantType].PreAuthorizedCode,
			second.Grants[oauth.PreAuthorizedCodeGrantType].PreAuthorizedCode)
	})
	t.Run("subject is required", func(t *testing.T) {
		offerIssuer, _ := newOfferIssuer(t)

		_, err := offerIssuer.Offer(ctx, OfferRequest{CredentialConfigurationIds: []string{"test_credential"}})

		assert.EqualError(t, err, "subject is required")
	})
	t.Run("at least one configuration is required", func(t *testing.T) {
		offerIssuer, _ := newOfferIssuer(t)

		_, err := offerIssuer.Offer(ctx, OfferRequest{Subject: "did:example:holder"})

		assert.EqualError(t, err, "at least one credential configuration is required")
	})
}
