package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tutorhub/tutorhub/pkg/observability/logger"
)

// JWTValidator validates JWT tokens and extracts claims.
type JWTValidator interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

// Claims represents the extracted claims from a validated JWT token.
type Claims struct {
	Subject   string         // Subject (sub) - user id
	Issuer    string         // Issuer (iss)
	ExpiresAt time.Time      // Expiration time (exp)
	IssuedAt  time.Time      // Issued at (iat)
	Roles     []string       // Roles extracted from the configured role claim
	Custom    map[string]any // Remaining claims
}

// DefaultRoleClaim is the claim read for roles when none is configured.
const DefaultRoleClaim = "role"

// HMACValidator validates HS256 tokens signed with a shared secret.
type HMACValidator struct {
	secret    []byte
	issuer    string
	roleClaim string
	logger    logger.Logger
}

// NewHMACValidator creates a validator. An empty issuer disables the issuer check.
func NewHMACValidator(secret, issuer, roleClaim string, log logger.Logger) (*HMACValidator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if roleClaim == "" {
		roleClaim = DefaultRoleClaim
	}
	if log == nil {
		log = logger.Nop()
	}
	return &HMACValidator{secret: []byte(secret), issuer: issuer, roleClaim: roleClaim, logger: log}, nil
}

// Validate validates a JWT token and extracts its claims.
// It checks the signature, the signing method, expiration and, when configured, the issuer.
func (v *HMACValidator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, err := v.extractClaims(token)
	if err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}

	v.logger.WithContext(ctx).Debug("token validated successfully", "subject", claims.Subject)
	return claims, nil
}

func (v *HMACValidator) extractClaims(token *jwt.Token) (*Claims, error) {
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("failed to parse claims")
	}

	claims := &Claims{Custom: make(map[string]any)}

	sub, err := mapClaims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("missing subject")
	}
	claims.Subject = sub
	claims.Issuer, _ = mapClaims.GetIssuer()
	if exp, _ := mapClaims.GetExpirationTime(); exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, _ := mapClaims.GetIssuedAt(); iat != nil {
		claims.IssuedAt = iat.Time
	}
	claims.Roles = stringList(mapClaims[v.roleClaim])

	standard := map[string]bool{"sub": true, "iss": true, "exp": true, "iat": true, "nbf": true, v.roleClaim: true}
	for k, val := range mapClaims {
		if !standard[k] {
			claims.Custom[k] = val
		}
	}
	return claims, nil
}

func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		return strings.Fields(val)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// IssueHS256 signs a token for subject with the given role. It exists for
// operational tooling and tests; user login lives outside this service.
func IssueHS256(secret, issuer, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":            subject,
		"iat":            now.Unix(),
		"exp":            now.Add(ttl).Unix(),
		DefaultRoleClaim: role,
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// claimsContextKey is the context key for storing claims.
type claimsContextKey struct{}

// WithClaims stores claims in the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// GetClaims retrieves claims from the context.
// Returns nil if no claims are found.
func GetClaims(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsContextKey{}).(*Claims); ok {
		return claims
	}
	return nil
}
