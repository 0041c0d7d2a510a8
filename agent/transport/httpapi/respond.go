package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/hlog"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	statex "github.com/tanpawarit/chative-retail/agent/state"
	qstashx "github.com/tanpawarit/chative-retail/pkg/qstash"
)

var errBodyTooLarge = errors.New("request body too large")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps domain sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, contractx.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contractx.ErrValidation), errors.Is(err, statex.ErrInvalidSession):
		return http.StatusUnprocessableEntity
	case errors.Is(err, contractx.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, qstashx.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, contractx.ErrModelInvoke):
		return http.StatusBadGateway
	case errors.Is(err, contractx.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs the full error and sends the client a message safe to expose.
// Provider and internal failures are reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusBadGateway:
		msg = "the assistant is temporarily unavailable"
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		msg = http.StatusText(status)
	case http.StatusUnauthorized:
		msg = "invalid signature"
	}

	event := hlog.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}
	event.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")

	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return fmt.Errorf("%w: invalid request body: %v", contractx.ErrValidation, err)
	}
	return nil
}

func decodeBytes(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", contractx.ErrValidation, err)
	}
	return nil
}
