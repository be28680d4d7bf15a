package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"fitDietAPI/internal/apperr"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithAppError maps a service error onto a status code. Unclassified
// errors are logged and reported without their details.
func respondWithAppError(w http.ResponseWriter, op string, err error) {
	code := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		code = http.StatusBadRequest
	case apperr.KindNotFound:
		code = http.StatusNotFound
	case apperr.KindStateConflict:
		code = http.StatusConflict
	}
	if errors.Is(err, context.DeadlineExceeded) {
		code = http.StatusGatewayTimeout
	}

	message := err.Error()
	if code >= http.StatusInternalServerError {
		log.Printf("%s failed: %v", op, err)
		message = "Internal server error"
	}
	respondWithJSON(w, code, map[string]string{
		"error": message,
		"code":  apperr.CodeOf(err),
	})
}

// queryInt reads an optional integer query parameter. Missing or malformed
// values yield 0.
func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}
