package jwt

import (
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type Claims struct {
	UserID    uint   `json:"user_id"`
	ProfileID uint   `json:"profile_id"`
	Role      string `json:"role"`
	IsAdmin   bool   `json:"is_admin"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

var jwtSecret = []byte(defaultSecret())

func defaultSecret() string {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return s
	}
	return "peiplan-dev-secret"
}

func GenerateToken(userID, profileID uint, role, email string, isAdmin bool) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID,
		ProfileID: profileID,
		Role:      role,
		IsAdmin:   isAdmin,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})

	return token.SignedString(jwtSecret)
}

func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, err
}
