package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"scolapay/internal/service"
)

type APIResponse struct {
	ErrorCode int         `json:"error_code"`
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
}

func Response(w http.ResponseWriter, message string, data interface{}, errorCode int, status string, httpStatus int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	response := APIResponse{
		ErrorCode: errorCode,
		Status:    status,
		Message:   message,
		Data:      data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("[HTTP] write response error: %v", err)
	}
}

func Success(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusOK)
}

func SuccessCreated(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusCreated)
}

func SuccessAccepted(w http.ResponseWriter, message string, data interface{}) {
	Response(w, message, data, 0, "success", http.StatusAccepted)
}

func Error(w http.ResponseWriter, message string, errorCode int, httpStatus int) {
	Response(w, message, nil, errorCode, "error", httpStatus)
}

func ErrorBadRequest(w http.ResponseWriter, message string) {
	Error(w, message, 400, http.StatusBadRequest)
}

func ErrorUnauthorized(w http.ResponseWriter, message string) {
	Error(w, message, 401, http.StatusUnauthorized)
}

func ErrorForbidden(w http.ResponseWriter, message string) {
	Error(w, message, 403, http.StatusForbidden)
}

func ErrorNotFound(w http.ResponseWriter, message string) {
	Error(w, message, 404, http.StatusNotFound)
}

func ErrorInternal(w http.ResponseWriter, message string) {
	Error(w, message, 500, http.StatusInternalServerError)
}

// ErrorValidation returns every collected violation so the client can show
// them together.
func ErrorValidation(w http.ResponseWriter, verrs service.ValidationErrors) {
	Response(w, "validation failed", map[string]interface{}{"errors": verrs}, 422, "error", http.StatusUnprocessableEntity)
}

// HandleServiceError maps domain errors onto the response envelope.
// Persistence errors are logged and masked; internals never leak.
func HandleServiceError(w http.ResponseWriter, op string, err error) {
	var verrs service.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		ErrorValidation(w, verrs)
	case errors.Is(err, service.ErrNotFound):
		ErrorNotFound(w, "not found")
	case errors.Is(err, service.ErrForbidden):
		ErrorForbidden(w, "forbidden")
	case errors.Is(err, service.ErrConflict):
		Error(w, "resource was modified concurrently, retry", 409, http.StatusConflict)
	default:
		log.Printf("[HTTP] %s error: %v", op, err)
		ErrorInternal(w, "error during "+op)
	}
}
