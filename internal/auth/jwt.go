package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lukasai/lukas/internal/config"
	"github.com/lukasai/lukas/pkg/errs"
)

var (
	ErrMissingToken = errs.Unauthenticated("missing_token")
	ErrInvalidToken = errs.Unauthenticated("invalid_token")
)

// Claims is the subset of a Supabase access token the service reads.
type Claims struct {
	Role        string         `json:"role,omitempty"`
	AppMetadata map[string]any `json:"app_metadata,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens and turns them into principals.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewVerifier(cfg config.Config) (*Verifier, error) {
	if cfg.Auth.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("AUTH_JWT_SECRET is required in production")
		}
	}
	return &Verifier{
		secret:   []byte(cfg.Auth.JWTSecret),
		issuer:   cfg.Auth.JWTIssuer,
		audience: cfg.Auth.JWTAudience,
	}, nil
}

func (v *Verifier) Verify(raw string) (Principal, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return Principal{}, ErrMissingToken
	}
	if len(v.secret) == 0 {
		return Principal{}, ErrInvalidToken.With(errors.New("verifier has no secret"))
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return Principal{}, ErrInvalidToken.With(err)
	}

	role := ParseRole(claims.Role)
	if metaRole, ok := claims.AppMetadata["role"].(string); ok && metaRole != "" {
		role = ParseRole(metaRole)
	}

	var userID uuid.UUID
	if claims.Subject != "" {
		parsed, err := uuid.Parse(claims.Subject)
		if err != nil {
			return Principal{}, ErrInvalidToken.With(fmt.Errorf("subject: %w", err))
		}
		userID = parsed
	}
	if userID == uuid.Nil && role == RoleUser {
		return Principal{}, ErrInvalidToken.With(errors.New("user token without subject"))
	}

	return Principal{UserID: userID, Role: role}, nil
}

// Issue signs a token for p. Used by tooling and tests.
func (v *Verifier) Issue(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: "authenticated",
		AppMetadata: map[string]any{
			"role": string(p.Role),
		},
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    v.issuer,
		},
	}
	if p.UserID != uuid.Nil {
		claims.Subject = p.UserID.String()
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
