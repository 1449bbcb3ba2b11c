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

// Package api contains the HTTP bindings of the issuer: the OAuth2 token endpoint,
// the OpenID4VCI credential endpoint and the well-known metadata endpoints.
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nuts-foundation/openid4vci-issuer/issuer"
	"github.com/nuts-foundation/openid4vci-issuer/oauth"
)

// Wrapper binds the issuer to echo routes.
type Wrapper struct {
	Issuer      *issuer.Issuer
	OfferIssuer *issuer.PreAuthorizedCodeIssuer
}

// Routes registers the handlers on the router.
func (w Wrapper) Routes(router *echo.Echo) {
	router.POST("/token", w.HandleTokenRequest)
	router.POST("/credential", w.HandleCredentialRequest)
	router.POST("/internal/offer", w.CreateOffer)
	router.GET(oauth.OpenIdCredIssuerWellKnown, w.GetIssuerMetadata)
	router.GET(oauth.AuthzServerWellKnown, w.GetAuthorizationServerMetadata)
}

// HandleTokenRequest handles POST /token (application/x-www-form-urlencoded).
func (w Wrapper) HandleTokenRequest(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return writeOAuth2Error(c, oauth.OAuth2Error{
			Code:          oauth.InvalidRequest,
			Description:   "unable to parse form",
			InternalError: err,
		})
	}
	response, err := w.Issuer.HandleTokenRequest(c.Request().Context(), form)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response)
}

// HandleCredentialRequest handles POST /credential (bearer access token, JSON body).
func (w Wrapper) HandleCredentialRequest(c echo.Context) error {
	accessToken, oauthErr := bearerToken(c)
	if oauthErr != nil {
		return writeOAuth2Error(c, *oauthErr)
	}
	var request issuer.CredentialRequest
	if err := c.Bind(&request); err != nil {
		return writeOAuth2Error(c, oauth.OAuth2Error{
			Code:          oauth.InvalidRequest,
			Description:   "unable to parse credential request",
			InternalError: err,
		})
	}
	response, err := w.Issuer.HandleCredentialRequest(c.Request().Context(), accessToken, request)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, response)
}

// CreateOffer handles POST /internal/offer, minting a credential offer.
// It is intended for the issuer's own backoffice, not for wallets,
// and must not be exposed publicly.
func (w Wrapper) CreateOffer(c echo.Context) error {
	var request OfferRequest
	if err := c.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to parse offer request")
	}
	offer, err := w.OfferIssuer.Offer(c.Request().Context(), issuer.OfferRequest{
		Subject:                    request.Subject,
		ClientID:                   request.ClientID,
		UserPin:                    request.UserPin,
		Scopes:                     request.Scopes,
		Audience:                   request.Audience,
		CredentialConfigurationIds: request.CredentialConfigurationIds,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, offer)
}

// GetIssuerMetadata handles GET /.well-known/openid-credential-issuer.
func (w Wrapper) GetIssuerMetadata(c echo.Context) error {
	return c.JSON(http.StatusOK, w.Issuer.Metadata())
}

// GetAuthorizationServerMetadata handles GET /.well-known/oauth-authorization-server.
func (w Wrapper) GetAuthorizationServerMetadata(c echo.Context) error {
	return c.JSON(http.StatusOK, w.Issuer.AuthorizationServerMetadata())
}

// OfferRequest is the POST /internal/offer request body.
type OfferRequest struct {
	Subject                    string   `json:"subject"`
	ClientID                   string   `json:"client_id,omitempty"`
	UserPin                    string   `json:"user_pin,omitempty"`
	Scopes                     []string `json:"scopes,omitempty"`
	Audience                   []string `json:"audience,omitempty"`
	CredentialConfigurationIds []string `json:"credential_configuration_ids"`
}

func bearerToken(c echo.Context) (string, *oauth.OAuth2Error) {
	header := c.Request().Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", &oauth.OAuth2Error{
			Code:        oauth.InvalidToken,
			Description: "missing or malformed access token",
		}
	}
	return header[7:], nil
}

// writeError renders any error as the OAuth2 JSON error shape.
func writeError(c echo.Context, err error) error {
	if oauthErr, ok := err.(oauth.OAuth2Error); ok {
		return writeOAuth2Error(c, oauthErr)
	}
	return writeOAuth2Error(c, oauth.OAuth2Error{Code: oauth.ServerError, InternalError: err})
}

func writeOAuth2Error(c echo.Context, err oauth.OAuth2Error) error {
	return c.JSON(err.StatusCode(), err)
}
