package middleware

import (
	"context"
	"crash_backend/internal/config"
	"crash_backend/pkg/resp"
	"crash_backend/pkg/token"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

type ctxKey struct{}

// Auth Проверяет bearer токен и кладёт идентификатор участника в контекст.
// Браузер не умеет ставить заголовки при открытии websocket, поэтому токен принимается и из ?token=
func Auth(cfg config.JWTConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				resp.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := token.VerifyToken(raw, cfg.AccessTokenSecretKey())
			if err != nil {
				log.Debug().Err(err).Msg("rejected access token")
				resp.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}
			participantID, err := claims.ParticipantID()
			if err != nil {
				resp.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, participantID)
			ctx = log.With().Int64("participant_id", participantID).Logger().WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// ParticipantIDFromContext Идентификатор участника, проверенный Auth
func ParticipantIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}
