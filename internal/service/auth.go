package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"

	"github.com/neighbournet/neighbournet/internal/domain"
)

var authTracer = otel.Tracer("auth")

// AuthService issues and verifies the tokens that carry an actor's
// verified identity. The lifecycle core never sees credentials; it only
// receives the actor id this service extracts.
type AuthService struct {
	config *domain.Config
}

func NewAuthService(config *domain.Config) *AuthService {
	return &AuthService{
		config: config,
	}
}

type AuthResult struct {
	ActorID string
	Role    domain.Role
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", pkgerrors.Wrap(err, "AuthService.HashPassword: bcrypt failed")
	}
	return string(hash), nil
}

func (s *AuthService) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken creates a signed JWT carrying the actor id and current role.
func (s *AuthService) IssueToken(actor *domain.Actor) (string, error) {
	duration := s.config.TokenDuration
	if duration <= 0 {
		duration = 7 * 24 * time.Hour
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  actor.ID,
		"role": string(actor.Role),
		"aud":  s.config.FQDN,
		"exp":  time.Now().Add(duration).Unix(),
		"iat":  time.Now().Unix(),
	})

	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", pkgerrors.Wrap(err, "AuthService.IssueToken: signing failed")
	}
	return signed, nil
}

// VerifyToken validates a bearer token and returns the identity it proves.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*AuthResult, error) {
	_, span := authTracer.Start(ctx, "Auth.Service.VerifyToken")
	defer span.End()

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		span.RecordError(pkgerrors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		err := fmt.Errorf("invalid token claims")
		span.RecordError(err)
		return nil, err
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		err := fmt.Errorf("token missing subject")
		span.RecordError(err)
		return nil, err
	}

	role, _ := claims["role"].(string)

	return &AuthResult{ActorID: sub, Role: domain.Role(role)}, nil
}
