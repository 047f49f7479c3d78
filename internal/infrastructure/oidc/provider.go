// Package oidc wraps the upstream identity provider: discovery,
// authorization-code exchange, ID-token verification, and claim
// extraction into the domain identity shape.
package oidc

import (
	"context"
	"fmt"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
)

type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// GroupClaims is the ordered list of claim names probed for group
	// memberships; the first claim present in the ID token wins, even
	// when its value is empty.
	GroupClaims []string
}

type Provider struct {
	verifier    *gooidc.IDTokenVerifier
	oauth       oauth2.Config
	issuer      string
	groupClaims []string
}

// NewProvider runs OIDC discovery against the issuer and prepares the
// authorization-code flow.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	provider, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email", "groups"}
	}

	return &Provider{
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		issuer:      cfg.IssuerURL,
		groupClaims: cfg.GroupClaims,
	}, nil
}

// AuthCodeURL builds the IdP login redirect for the given state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange redeems the authorization code, verifies the ID token, and
// extracts the external identity.
func (p *Provider) Exchange(ctx context.Context, code string) (domain.ExternalIdentity, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("oidc code exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return domain.ExternalIdentity{}, fmt.Errorf("oidc code exchange: token response has no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("oidc id token verification: %w", err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return domain.ExternalIdentity{}, fmt.Errorf("oidc claims: %w", err)
	}

	identity := domain.ExternalIdentity{
		Provider:      p.issuer,
		Subject:       idToken.Subject,
		Email:         stringClaim(claims, "email"),
		PreferredName: preferredName(claims),
		RawGroups:     p.extractGroups(claims),
	}
	if identity.Email == "" {
		return domain.ExternalIdentity{}, fmt.Errorf("oidc claims: id token has no email claim")
	}
	return identity, nil
}

// extractGroups probes the configured claim names in order. Presence
// decides, not content: a present-but-empty claim yields an empty group
// set and stops the probe.
func (p *Provider) extractGroups(claims map[string]any) []string {
	for _, name := range p.groupClaims {
		raw, ok := claims[name]
		if !ok {
			continue
		}
		values, ok := raw.([]any)
		if !ok {
			return nil
		}
		groups := make([]string, 0, len(values))
		for _, v := range values {
			if s, ok := v.(string); ok {
				groups = append(groups, s)
			}
		}
		return groups
	}
	return nil
}

func preferredName(claims map[string]any) string {
	for _, key := range []string{"preferred_username", "nickname", "name"} {
		if v := stringClaim(claims, key); v != "" {
			return v
		}
	}
	return ""
}

func stringClaim(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
