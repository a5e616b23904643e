package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/doorman-auth/doorman/pkg/oauth"
)

// Introspect queries the introspection endpoint about token, authenticating
// the call with authToken.
func (c *Client) Introspect(ctx context.Context, authToken, token string) (*oauth.IntrospectionResponse, error) {
	if c.metadata.IntrospectionEndpoint == "" {
		return nil, fmt.Errorf("server does not advertise an introspection endpoint")
	}

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.metadata.IntrospectionEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("introspection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("introspection returned status %d", resp.StatusCode)
	}

	var out oauth.IntrospectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("bad introspection response: %w", err)
	}
	return &out, nil
}

// Userinfo fetches the OpenID Connect userinfo claims for an access token.
func (c *Client) Userinfo(ctx context.Context, accessToken string) (*oauth.UserinfoResponse, error) {
	if c.metadata.UserinfoEndpoint == "" {
		return nil, fmt.Errorf("server does not advertise a userinfo endpoint")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.metadata.UserinfoEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var out oauth.UserinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("bad userinfo response: %w", err)
	}
	return &out, nil
}

// TokenClaims decodes the claims of a JWT without verifying its signature.
// Doorman access tokens are opaque; this serves ID tokens and JWTs issued by
// other providers the helper may talk to.
func TokenClaims(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}
