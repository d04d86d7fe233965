package env

import (
	"crash_backend/internal/config"
	"fmt"
	"os"
)

const (
	accessTokenKeyEnvName = "ACCESS_TOKEN"
)

// jwtConfig хранит только секрет для проверки подписи:
// токены выпускает внешний сервис авторизации
type jwtConfig struct {
	accessTokenSecretKey string
}

func NewJWTConfig() (config.JWTConfig, error) {
	accessToken := os.Getenv(accessTokenKeyEnvName)
	if len(accessToken) == 0 {
		return nil, fmt.Errorf("access token secret key not found")
	}

	return &jwtConfig{
		accessTokenSecretKey: accessToken,
	}, nil
}

func (j *jwtConfig) AccessTokenSecretKey() []byte {
	return []byte(j.accessTokenSecretKey)
}
