package service

import (
	"fmt"
	"time"

	"ventas-sync/internal/domain"
	"ventas-sync/pkg/hash"
	"ventas-sync/pkg/jwt"
)

// deviceSubject is the JWT subject for the single signed-in device user.
const deviceSubject = "pos-device"

// AuthService implements the PIN unlock: the device holds one bcrypt PIN
// hash, and a correct PIN yields a session token for the local API.
type AuthService struct {
	pinHash       string
	jwtSecret     string
	jwtExpiration time.Duration
}

func NewAuthService(pinHash, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		pinHash:       pinHash,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) Login(req *domain.LoginRequest) (*domain.LoginResponse, error) {
	if s.pinHash == "" {
		return nil, ErrPINInvalido
	}
	if err := hash.Compare(s.pinHash, req.PIN); err != nil {
		return nil, ErrPINInvalido
	}

	token, err := jwt.GenerateToken(deviceSubject, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtExpiration.Seconds()),
	}, nil
}

func (s *AuthService) ValidateToken(token string) (*jwt.Claims, error) {
	claims, err := jwt.ValidateToken(token, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}
