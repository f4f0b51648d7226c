package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionIssuer = "pocket-guard"

// JWTService valida los tokens de sesion y permite cerrarlas.
// Los tokens los emite el login externo con el mismo secreto; aqui solo se emiten sesiones demo.
type JWTService struct {
	secret  []byte
	ttl     time.Duration
	issuer  string
	revoked SessionRevocationStore
	now     func() time.Time
}

type SessionToken struct {
	AccessToken string `json:"access_token"`
	SessionID   string `json:"session_id"`
	ExpiresIn   int64  `json:"expires_in"`
}

type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid     = errors.New("jwt invalid")
	ErrJWTExpired     = errors.New("jwt expired")
	ErrSessionRevoked = errors.New("session revoked")
)

func NewJWTService(secret string, ttl time.Duration, revoked SessionRevocationStore) *JWTService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if revoked == nil {
		revoked = NewMemorySessionRevocationStore()
	}
	return &JWTService{
		secret:  []byte(secret),
		ttl:     ttl,
		issuer:  sessionIssuer,
		revoked: revoked,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// IssueSession firma un token para una sesion nueva.
func (s *JWTService) IssueSession(userID, email string) (SessionToken, error) {
	if len(s.secret) == 0 {
		return SessionToken{}, ErrJWTInvalid
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return SessionToken{}, ErrJWTInvalid
	}
	now := s.now()
	sid := uuid.NewString()
	claims := Claims{
		UserID:    userID,
		SessionID: sid,
		Email:     strings.TrimSpace(email),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sid,
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{
		AccessToken: signed,
		SessionID:   sid,
		ExpiresIn:   int64(s.ttl.Seconds()),
	}, nil
}

// ParseAccessToken valida firma, emisor y vigencia, y rechaza sesiones cerradas.
// Un error del store de revocacion se devuelve tal cual para que el caller responda 503.
func (s *JWTService) ParseAccessToken(ctx context.Context, accessToken string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(accessToken) == "" {
		return Claims{}, ErrJWTInvalid
	}
	claims, err := s.parseToken(accessToken)
	if err != nil {
		return Claims{}, err
	}
	if !s.isValidClaims(claims) {
		return Claims{}, ErrJWTInvalid
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.SessionID)
	if err != nil {
		return Claims{}, fmt.Errorf("check session revocation: %w", err)
	}
	if revoked {
		return Claims{}, ErrSessionRevoked
	}
	return claims, nil
}

// RevokeSession cierra la sesion hasta que el token expire por si solo.
func (s *JWTService) RevokeSession(ctx context.Context, claims Claims) error {
	if strings.TrimSpace(claims.SessionID) == "" {
		return ErrJWTInvalid
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Time.Sub(s.now()); remaining > ttl {
			ttl = remaining
		}
	}
	return s.revoked.Revoke(ctx, claims.SessionID, ttl)
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" {
		return false
	}
	if strings.TrimSpace(claims.SessionID) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
