package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrMissingSubject     = errors.New("token has no subject")
)

// APIKey is a statically configured key. Only the SHA-256 hash of the raw
// key is kept.
type APIKey struct {
	Label   string
	KeyHash string
	UserID  string
	Tenants []string
}

// Principal is the authenticated caller. UserID is stamped into the audit
// fields of every write. An empty Tenants list grants every namespace.
type Principal struct {
	Type    string   `json:"type"` // "jwt" or "api_key"
	UserID  string   `json:"userId"`
	Tenants []string `json:"tenants"`
}

// CanAccess reports whether the principal may operate on the tenant.
func (p *Principal) CanAccess(tenant string) bool {
	return len(p.Tenants) == 0 || slices.Contains(p.Tenants, tenant)
}

type AuthService struct {
	jwtSecret []byte
	keys      []APIKey
}

func NewAuthService(jwtSecret string, keys ...APIKey) *AuthService {
	return &AuthService{
		jwtSecret: []byte(jwtSecret),
		keys:      keys,
	}
}

// ValidateAPIKey checks the provided raw API key against the configured key
// hashes.
func (s *AuthService) ValidateAPIKey(ctx context.Context, rawKey string) (*Principal, error) {
	hash := HashAPIKey(rawKey)
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare([]byte(k.KeyHash), []byte(hash)) == 1 {
			return &Principal{Type: "api_key", UserID: k.UserID, Tenants: k.Tenants}, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// ValidateJWT verifies a JWT bearer token. The subject claim is the user id.
func (s *AuthService) ValidateJWT(ctx context.Context, tokenStr string) (*Principal, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return &Principal{
		Type:    "jwt",
		UserID:  claims.Subject,
		Tenants: claims.Tenants,
	}, nil
}

// IssueJWT creates a signed token for a user, optionally restricted to a set
// of tenants.
func (s *AuthService) IssueJWT(ctx context.Context, userID string, tenants []string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", ErrMissingSubject
	}
	now := time.Now()
	claims := jwtClaims{
		Tenants: tenants,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "basin",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

type jwtClaims struct {
	Tenants []string `json:"tenants,omitempty"`
	jwt.RegisteredClaims
}

// HashAPIKey returns the hex SHA-256 of a raw key, the form stored in config.
func HashAPIKey(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])
}
