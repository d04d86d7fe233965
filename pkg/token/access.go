package token

import (
	"crash_backend/internal/model"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateAccessToken Токен участника. В проде токены выпускает сервис авторизации,
// здесь используется для локальной отладки и тестов
func GenerateAccessToken(participantID int64, secretKey []byte, ttl time.Duration) (string, error) {
	claims := model.ParticipantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        strconv.FormatInt(participantID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(secretKey)
}

func VerifyToken(tokenStr string, secretKey []byte) (*model.ParticipantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &model.ParticipantClaims{}, func(token *jwt.Token) (interface{}, error) {
		_, ok := token.Method.(*jwt.SigningMethodHMAC)
		if !ok {
			return nil, errors.New("unexpected token signing method")
		}

		return secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(*model.ParticipantClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
