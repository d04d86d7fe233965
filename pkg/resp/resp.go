package resp

import (
	"net/http"

	"github.com/go-chi/render"
)

func WriteJSONResponse(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

// ErrorResponse Тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, kind string) {
	WriteJSONResponse(w, r, status, ErrorResponse{Error: kind})
}
