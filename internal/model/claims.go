package model

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// ParticipantClaims Токен выдаёт внешний сервис авторизации, ID - идентификатор участника
type ParticipantClaims struct {
	jwt.RegisteredClaims
}

func (c *ParticipantClaims) ParticipantID() (int64, error) {
	id, err := strconv.ParseInt(c.ID, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid participant id %q", c.ID)
	}
	return id, nil
}
