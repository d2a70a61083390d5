package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"stagebook/internal/domain"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid claims")
)

type Service struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// Claims carry the verified (identity, role) pair.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwtlib.RegisteredClaims
}

func New(secret string, ttl time.Duration, issuer string) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
	}
}

func (s *Service) GenerateToken(userID string, role domain.Role) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidClaims)
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}

	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken verifies signature and expiry and returns the caller actor.
// Roles outside the closed set, including the internal system role, are rejected.
func (s *Service) ValidateToken(tokenStr string) (domain.Actor, error) {
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(s.issuer))
	}
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return domain.Actor{}, ErrInvalidClaims
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Actor{}, ErrInvalidClaims
	}

	return domain.Actor{ID: claims.UserID, Role: role}, nil
}
