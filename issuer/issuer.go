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
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nuts-foundation/openid4vci-issuer/issuer/log"
	"github.com/nuts-foundation/openid4vci-issuer/oauth"
)

// CredentialHandler signs a credential in one wire format.
type CredentialHandler interface {
	// Format returns the credential format this handler serves.
	Format() CredentialFormat
	// Sign builds and signs the credential.
	// credentialData contains the already-prepared credential claims.
	Sign(ctx context.Context, cfg CredentialConfiguration, proof ProofOfPossession, credentialData map[string]interface{}) (string, error)
}

// CredentialDataSource provides the claims to put in a credential for a subject.
type CredentialDataSource interface {
	CredentialData(ctx context.Context, subject string, cfg CredentialConfiguration) (map[string]interface{}, error)
}

// StaticCredentialData is a CredentialDataSource that returns fixed claims per
// credential configuration, with the subject filled in.
type StaticCredentialData map[string]map[string]interface{}

func (s StaticCredentialData) CredentialData(_ context.Context, subject string, cfg CredentialConfiguration) (map[string]interface{}, error) {
	result := map[string]interface{}{"sub": subject}
	for claim, value := range s[cfg.ID] {
		result[claim] = value
	}
	return result, nil
}

// Issuer ties the token endpoint pipeline and the credential endpoint together.
// Handlers are stateless: the only shared mutable state lives in the Store
// behind the grant handlers.
type Issuer struct {
	identifier         string
	accessTokenTTL     time.Duration
	tokenService       *AccessTokenService
	tokenVerifier      *AccessTokenVerifier
	grantHandlers      map[string]GrantHandler
	credentialHandlers map[CredentialFormat]CredentialHandler
	configurations     map[string]CredentialConfiguration
	clients            map[string]Client
	dataSource         CredentialDataSource
	metrics            *metrics
}

// New creates an Issuer identified by the given URL.
func New(identifier string, accessTokenTTL time.Duration, tokenService *AccessTokenService, tokenVerifier *AccessTokenVerifier, dataSource CredentialDataSource) *Issuer {
	return &Issuer{
		identifier:         identifier,
		accessTokenTTL:     accessTokenTTL,
		tokenService:       tokenService,
		tokenVerifier:      tokenVerifier,
		grantHandlers:      map[string]GrantHandler{},
		credentialHandlers: map[CredentialFormat]CredentialHandler{},
		configurations:     map[string]CredentialConfiguration{},
		clients:            map[string]Client{},
		dataSource:         dataSource,
		metrics:            newMetrics(),
	}
}

// Identifier returns the credential issuer identifier URL.
func (i *Issuer) Identifier() string {
	return i.identifier
}

// RegisterGrantHandler registers a grant handler by its grant type.
func (i *Issuer) RegisterGrantHandler(handler GrantHandler) {
	i.grantHandlers[handler.GrantType()] = handler
}

// RegisterCredentialHandler registers a format handler by its format.
func (i *Issuer) RegisterCredentialHandler(handler CredentialHandler) {
	i.credentialHandlers[handler.Format()] = handler
}

// RegisterConfiguration registers an issuable credential configuration.
func (i *Issuer) RegisterConfiguration(cfg CredentialConfiguration) {
	i.configurations[cfg.ID] = cfg
}

// RegisterClient registers a known OAuth2 client.
func (i *Issuer) RegisterClient(client Client) {
	i.clients[client.ID] = client
}

// Collectors returns the prometheus collectors of the issuer.
func (i *Issuer) Collectors() []prometheus.Collector {
	return i.metrics.collectors()
}

// HandleTokenRequest processes a token endpoint request.
// Protocol failures are returned as oauth.OAuth2Error.
func (i *Issuer) HandleTokenRequest(ctx context.Context, form url.Values) (*oauth.TokenResponse, error) {
	response, err := i.handleTokenRequest(ctx, form)
	if err != nil {
		oauthErr := toOAuth2Error(err)
		i.metrics.tokenFailures.WithLabelValues(string(oauthErr.Code)).Inc()
		log.Logger().WithError(oauthErr.InternalError).
			WithField("error", string(oauthErr.Code)).
			Info("Token request failed: " + oauthErr.Description)
		return nil, oauthErr
	}
	i.metrics.tokensIssued.Inc()
	return response, nil
}

func (i *Issuer) handleTokenRequest(ctx context.Context, form url.Values) (*oauth.TokenResponse, error) {
	grantType := form.Get(oauth.GrantTypeParam)
	if grantType == "" {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidRequest,
			Description: "missing grant_type parameter",
		}
	}
	handler, ok := i.grantHandlers[grantType]
	if !ok {
		return nil, oauth.OAuth2Error{
			Code:        oauth.UnsupportedGrantType,
			Description: "unsupported grant type: " + grantType,
		}
	}

	client := Client{ID: form.Get(oauth.ClientIDParam)}
	if registered, ok := i.clients[client.ID]; ok {
		client = registered
		if !client.AllowsGrantType(grantType) {
			return nil, oauth.OAuth2Error{
				Code:        oauth.InvalidClient,
				Description: "client is not registered for grant type: " + grantType,
			}
		}
	}

	request := NewAccessTokenRequest(client, []string{grantType}, form)
	result, err := handler.Handle(ctx, request)
	if err != nil {
		return nil, err
	}
	if result.Request.HandledGrantType() == "" {
		return nil, oauth.OAuth2Error{
			Code:          oauth.ServerError,
			InternalError: fmt.Errorf("grant handler for %s did not mark the grant as handled", grantType),
		}
	}

	session := result.Request.Session()
	if session == nil || session.Subject == "" {
		return nil, oauth.OAuth2Error{
			Code:        oauth.InvalidRequest,
			Description: "subject is required in session",
		}
	}

	now := time.Now()
	claims := map[string]interface{}{
		"iss": i.identifier,
		"sub": session.Subject,
		"iat": now.Unix(),
		"exp": now.Add(i.accessTokenTTL).Unix(),
	}
	if audience := result.Request.GrantedAudience(); len(audience) > 0 {
		claims["aud"] = audience[0]
	}
	scopes := result.Request.GrantedScopes()
	if len(scopes) > 0 {
		claims["scope"] = strings.Join(scopes, " ")
	}
	if clientID := result.Request.Client().ID; clientID != "" {
		claims["client_id"] = clientID
	}
	if result.PreAuthorizedCode != "" {
		claims["pre_authorized_code"] = result.PreAuthorizedCode
	}
	if result.CNonce != "" {
		// carried in the token so the credential endpoint can check the proof binding
		claims["c_nonce"] = result.CNonce
	}

	accessToken, err := i.tokenService.CreateAccessToken(ctx, claims)
	if err != nil {
		return nil, oauth.OAuth2Error{
			Code:          oauth.ServerError,
			InternalError: err,
		}
	}

	expiresIn := int(i.accessTokenTTL.Seconds())
	response := oauth.TokenResponse{
		AccessToken: accessToken,
		TokenType:   oauth.BearerTokenType,
		ExpiresIn:   &expiresIn,
	}
	if len(scopes) > 0 {
		scope := strings.Join(scopes, " ")
		response.Scope = &scope
	}
	if result.CNonce != "" {
		cNonce := result.CNonce
		cNonceExpiresIn := result.CNonceExpiresIn
		response.CNonce = &cNonce
		response.CNonceExpiresIn = &cNonceExpiresIn
	}
	return &response, nil
}

// HandleCredentialRequest processes a credential endpoint request.
// Protocol failures are returned as oauth.OAuth2Error.
func (i *Issuer) HandleCredentialRequest(ctx context.Context, accessToken string, request CredentialRequest) (*CredentialResponse, error) {
	response, format, err := i.handleCredentialRequest(ctx, accessToken, request)
	if err != nil {
		oauthErr := toOAuth2Error(err)
		i.metrics.credentialFailures.WithLabelValues(string(oauthErr.Code)).Inc()
		log.Logger().WithError(oauthErr.InternalError).
			WithField("error", string(oauthErr.Code)).
			Info("Credential request failed: " + oauthErr.Description)
		return nil, oauthErr
	}
	i.metrics.credentialsIssued.WithLabelValues(string(format)).Inc()
	return response, nil
}

func (i *Issuer) handleCredentialRequest(ctx context.Context, accessToken string, request CredentialRequest) (*CredentialResponse, CredentialFormat, error) {
	claims, err := i.tokenVerifier.Verify(ctx, accessToken)
	if err != nil {
		return nil, "", err
	}

	cfg := CredentialConfiguration{
		ID:     request.CredentialConfigurationId,
		Format: request.Format,
	}
	if request.CredentialConfigurationId != "" {
		registered, ok := i.configurations[request.CredentialConfigurationId]
		if !ok {
			return nil, "", oauth.OAuth2Error{
				Code:        oauth.UnsupportedCredentialConfiguration,
				Description: "unknown credential configuration: " + request.CredentialConfigurationId,
			}
		}
		cfg = registered
	}
	handler, ok := i.credentialHandlers[cfg.Format]
	if !ok {
		return nil, "", oauth.OAuth2Error{
			Code:        oauth.UnsupportedCredentialConfiguration,
			Description: fmt.Sprintf("No handler for format %s", cfg.Format),
		}
	}

	expectedNonce, _ := claims["c_nonce"].(string)
	proof, err := ValidateProof(request, i.identifier, expectedNonce)
	if err != nil {
		return nil, "", err
	}

	subject, _ := claims["sub"].(string)
	credentialData, err := i.dataSource.CredentialData(ctx, subject, cfg)
	if err != nil {
		return nil, "", oauth.OAuth2Error{
			Code:          oauth.ServerError,
			InternalError: err,
		}
	}

	credential, err := i.signCredential(ctx, handler, cfg, *proof, credentialData)
	if err != nil {
		return nil, "", err
	}
	return &CredentialResponse{
		Credentials: []IssuedCredential{{Credential: credential}},
	}, cfg.Format, nil
}

// signCredential invokes the format handler, folding errors and panics into invalid_request:
// a broken signer must never take the endpoint down.
func (i *Issuer) signCredential(ctx context.Context, handler CredentialHandler, cfg CredentialConfiguration, proof ProofOfPossession, credentialData map[string]interface{}) (credential string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = oauth.OAuth2Error{
				Code:          oauth.InvalidRequest,
				Description:   "credential could not be signed",
				InternalError: fmt.Errorf("credential signer panic: %v", recovered),
			}
		}
	}()
	credential, err = handler.Sign(ctx, cfg, proof, credentialData)
	if err != nil {
		var oauthErr oauth.OAuth2Error
		if !errors.As(err, &oauthErr) {
			err = oauth.OAuth2Error{
				Code:          oauth.InvalidRequest,
				Description:   "credential could not be signed: " + err.Error(),
				InternalError: err,
			}
		}
		return "", err
	}
	return credential, nil
}

// Metadata returns the OpenID credential issuer metadata.
func (i *Issuer) Metadata() oauth.OpenIDCredentialIssuerMetadata {
	configurations := map[string]map[string]any{}
	for id, cfg := range i.configurations {
		configurations[id] = map[string]any{"format": string(cfg.Format)}
	}
	return oauth.OpenIDCredentialIssuerMetadata{
		CredentialIssuer:                  i.identifier,
		CredentialEndpoint:                i.identifier + "/credential",
		AuthorizationServers:              []string{i.identifier},
		CredentialConfigurationsSupported: configurations,
	}
}

// AuthorizationServerMetadata returns the OAuth2 authorization server metadata.
func (i *Issuer) AuthorizationServerMetadata() oauth.AuthorizationServerMetadata {
	grantTypes := make([]string, 0, len(i.grantHandlers))
	for grantType := range i.grantHandlers {
		grantTypes = append(grantTypes, grantType)
	}
	sort.Strings(grantTypes)
	return oauth.AuthorizationServerMetadata{
		Issuer:              i.identifier,
		TokenEndpoint:       i.identifier + "/token",
		GrantTypesSupported: grantTypes,
		PreAuthorizedGrantAnonymousAccessSupported: true,
	}
}

func toOAuth2Error(err error) oauth.OAuth2Error {
	var oauthErr oauth.OAuth2Error
	if errors.As(err, &oauthErr) {
		return oauthErr
	}
	return oauth.OAuth2Error{
		Code:          oauth.ServerError,
		InternalError: err,
	}
}
