package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures token verification and signing.
type JWTConfig struct {
	// Secret is the HS256 key. Required.
	Secret []byte

	// Issuer is the expected token issuer (iss claim). Optional.
	Issuer string

	// Audience is the expected token audience (aud claim). Optional.
	Audience string

	// RolesClaim is the claim containing roles.
	// Default: "roles"
	RolesClaim string

	// Leeway tolerates clock skew on exp, nbf and iat.
	Leeway time.Duration
}

// JWTVerifier validates HS256 bearer tokens.
type JWTVerifier struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTVerifier creates a verifier. Tokens signed with any algorithm other
// than HS256 are rejected.
func NewJWTVerifier(config JWTConfig) (*JWTVerifier, error) {
	if len(config.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if config.RolesClaim == "" {
		config.RolesClaim = "roles"
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(config.Leeway),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &JWTVerifier{config: config, parser: jwt.NewParser(opts...)}, nil
}

// Verify checks an Authorization header value of the form "Bearer <token>".
func (v *JWTVerifier) Verify(header string) (*Identity, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, ErrMissingCredentials
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return v.config.Secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	default:
		return nil, ErrInvalidCredentials
	}

	return v.identity(claims), nil
}

func (v *JWTVerifier) identity(claims jwt.MapClaims) *Identity {
	id := &Identity{Claims: make(map[string]any, len(claims))}
	for k, val := range claims {
		id.Claims[k] = val
	}

	id.Principal, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		id.IssuedAt = iat.Time
	}

	switch roles := claims[v.config.RolesClaim].(type) {
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok {
				id.Roles = append(id.Roles, s)
			}
		}
	case string:
		id.Roles = strings.Fields(roles)
	}
	return id
}

// Sign issues an HS256 token for subject with the given roles, valid for ttl.
func Sign(config JWTConfig, subject string, roles []string, ttl time.Duration) (string, error) {
	if len(config.Secret) == 0 {
		return "", ErrMissingSecret
	}
	rolesClaim := config.RolesClaim
	if rolesClaim == "" {
		rolesClaim = "roles"
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      subject,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
		rolesClaim: roles,
	}
	if config.Issuer != "" {
		claims["iss"] = config.Issuer
	}
	if config.Audience != "" {
		claims["aud"] = config.Audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(config.Secret)
}
