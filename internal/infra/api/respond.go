package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"launchpad/internal/domain"
)

type errorDetail struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

var statusByCode = map[string]int{
	domain.CodeValidation:          http.StatusUnprocessableEntity,
	domain.CodeNotFound:            http.StatusNotFound,
	domain.CodeExpired:             http.StatusGone,
	domain.CodeUsageLimitReached:   http.StatusConflict,
	domain.CodePerUserLimitReached: http.StatusConflict,
	domain.CodeGenerationExhausted: http.StatusConflict,
	domain.CodeStoreUnavailable:    http.StatusServiceUnavailable,
	domain.CodeRateLimited:         http.StatusTooManyRequests,
}

// StatusOf maps a use case error to its HTTP status.
func StatusOf(err error) int {
	if s, ok := statusByCode[domain.Code(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

// writeError hides messages of unclassified errors.
func writeError(w http.ResponseWriter, err error) {
	code := domain.Code(err)
	msg := err.Error()
	if code == domain.CodeInternal {
		msg = "internal error"
	}
	if code == domain.CodeStoreUnavailable {
		w.Header().Set("Retry-After", "1")
		msg = "store unavailable, retry later"
	}
	writeErrorCode(w, StatusOf(err), code, msg)
}

const maxBodyBytes = 1 << 16

// decodeJSON maps malformed or oversized bodies to 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "missing body"
		}
		writeErrorCode(w, http.StatusBadRequest, "bad_request", msg)
		return false
	}
	return true
}
