package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"imagevault/internal/errors"
	"imagevault/internal/model"
)

// DefaultTokenTTL is the validity window of an issued token.
const DefaultTokenTTL = time.Hour

// BearerPrefix is the scheme marker in front of a presented token.
const BearerPrefix = "Bearer "

// JWTService issues and validates signed bearer tokens. It is stateless:
// tokens cannot be revoked before they expire.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService creates a new JWT service with the given secret and token lifetime.
func NewJWTService(secret string, ttl time.Duration) *JWTService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue generates a token whose subject is the identity's email.
func (s *JWTService) Issue(identity *model.Identity) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   identity.Email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifySubject checks the token signature and returns its subject claim.
// Expiry is not evaluated here; use IsValid for that.
func (s *JWTService) VerifySubject(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// IsValid reports whether the token carries expectedSubject and has not expired.
func (s *JWTService) IsValid(tokenString, expectedSubject string) bool {
	claims, err := s.parse(tokenString)
	if err != nil {
		return false
	}
	if claims.Subject != expectedSubject || claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.After(s.now())
}

// SubjectFromBearer strips the 7-character "Bearer " prefix and verifies the rest.
// Callers must uphold the prefix convention; shorter values are rejected.
func (s *JWTService) SubjectFromBearer(bearer string) (string, error) {
	if len(bearer) < len(BearerPrefix) {
		return "", errors.InvalidToken("missing bearer token")
	}
	return s.VerifySubject(bearer[len(BearerPrefix):])
}

func (s *JWTService) parse(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.InvalidToken("invalid token signature or format")
	}
	return claims, nil
}
