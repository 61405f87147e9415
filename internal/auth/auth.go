// Package auth verifies bearer tokens issued by an OIDC provider and exposes
// the caller's roles.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/bargn/bargn/pkg/logger"
	"github.com/bargn/bargn/pkg/models"
)

// Principal is an authenticated caller.
type Principal struct {
	Subject string   `json:"sub"`
	Email   string   `json:"email,omitempty"`
	Roles   []string `json:"roles"`
}

// HasRole reports whether the principal holds role. Comparison is case-insensitive.
func (p *Principal) HasRole(role string) bool {
	if p == nil || role == "" {
		return false
	}
	return slices.ContainsFunc(p.Roles, func(r string) bool { return strings.EqualFold(r, role) })
}

// TokenVerifier turns a raw bearer token into a Principal. Invalid tokens
// yield an error wrapping models.ErrUnauthorized.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Principal, error)
}

// OIDCOptions configures an OIDCVerifier.
type OIDCOptions struct {
	IssuerURL         string
	ClientID          string
	RolesClaim        string
	SkipClientIDCheck bool
	Logger            *slog.Logger
}

// OIDCVerifier validates tokens against the issuer's published signing keys.
type OIDCVerifier struct {
	verifier   *oidc.IDTokenVerifier
	rolesClaim string
	log        *slog.Logger
}

// NewOIDCVerifier discovers the issuer configuration and builds a verifier.
func NewOIDCVerifier(ctx context.Context, opts OIDCOptions) (*OIDCVerifier, error) {
	if strings.TrimSpace(opts.IssuerURL) == "" {
		return nil, errors.New("oidc issuer url is required")
	}
	if opts.ClientID == "" && !opts.SkipClientIDCheck {
		return nil, errors.New("oidc client id is required unless skip_client_id_check is set")
	}
	provider, err := oidc.NewProvider(ctx, opts.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return newOIDCVerifier(provider.Verifier(&oidc.Config{
		ClientID:          opts.ClientID,
		SkipClientIDCheck: opts.SkipClientIDCheck,
	}), opts), nil
}

func newOIDCVerifier(v *oidc.IDTokenVerifier, opts OIDCOptions) *OIDCVerifier {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	rolesClaim := opts.RolesClaim
	if rolesClaim == "" {
		rolesClaim = "roles"
	}
	return &OIDCVerifier{
		verifier:   v,
		rolesClaim: rolesClaim,
		log:        log.With("component", "oidc_verifier"),
	}
}

// Verify checks signature, issuer, audience and expiry, then extracts roles.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		v.log.Debug("token verification failed", "error", err)
		return nil, fmt.Errorf("%w: invalid token", models.ErrUnauthorized)
	}
	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: unreadable claims", models.ErrUnauthorized)
	}
	return principalFromClaims(token.Subject, claims, v.rolesClaim), nil
}

// principalFromClaims reads roles from a possibly nested claim path such as
// "realm_access.roles". The claim may be a list or a space separated string.
func principalFromClaims(subject string, claims map[string]any, rolesClaim string) *Principal {
	p := &Principal{Subject: subject, Roles: []string{}}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}

	var node any = claims
	for _, part := range strings.Split(rolesClaim, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return p
		}
		node = m[part]
	}

	switch roles := node.(type) {
	case string:
		p.Roles = strings.Fields(roles)
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok && s != "" {
				p.Roles = append(p.Roles, s)
			}
		}
	case []string:
		p.Roles = append(p.Roles, roles...)
	}
	return p
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
