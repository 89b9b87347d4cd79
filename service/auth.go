package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLifetime = 24 * time.Hour

// CreateJWT issues a token for ownerId. Login itself happens elsewhere; this
// exists for tooling and tests.
func (s *Service) CreateJWT(ownerId string) (string, error) {
	claims := jwt.MapClaims{
		"id":  ownerId,
		"exp": s.Options.Now().Add(tokenLifetime).Unix(),
		"iat": s.Options.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.JWTSecret)
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

func (s *Service) VerifyJWT(tokenString string) (string, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", time.Time{}, err
	}

	if !token.Valid {
		return "", time.Time{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, errors.New("invalid token claims")
	}

	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return "", time.Time{}, errors.New("missing id claim")
	}

	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return "", time.Time{}, errors.New("missing exp claim")
	}
	expiry := time.Unix(int64(expFloat), 0)

	return id, expiry, nil
}

// AuthenticateToken returns the owner identity carried by token.
func (s *Service) AuthenticateToken(token string) (string, error) {
	if len(token) == 0 {
		return "", errors.New("token not provided")
	}

	ownerId, _, err := s.VerifyJWT(token)
	if err != nil {
		return "", err
	}

	return ownerId, nil
}
