package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSecret is returned when a token manager is built without a signing secret
var ErrNoSecret = errors.New("jwt secret required")

// Claims identify who changed a listing
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"` // landlord, agent, admin
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 bearer tokens
type TokenManager struct {
	secret []byte
	issuer string
}

// NewTokenManager creates a manager. An empty issuer defaults to "babui".
func NewTokenManager(secret, issuer string) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if issuer == "" {
		issuer = "babui"
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer}, nil
}

// GenerateToken mints a token for userID valid for expiresIn
func (tm *TokenManager) GenerateToken(userID, role string, expiresIn time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user_id required")
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ValidateToken parses tokenString and checks signature, expiry and issuer
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ExtractToken returns the token from an "Authorization: Bearer <token>" header
func ExtractToken(authHeader string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return strings.TrimSpace(token), nil
}
