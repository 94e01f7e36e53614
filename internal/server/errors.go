package server

import (
	"errors"
	"net/http"

	"github.com/lazypower/erosion/internal/engine"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var statusByErr = []struct {
	err    error
	status int
}{
	{engine.ErrUnauthorized, http.StatusForbidden},

	{engine.ErrInvalidDecayRate, http.StatusBadRequest},
	{engine.ErrInvalidAdmissionProof, http.StatusBadRequest},
	{engine.ErrInvalidTransferAmount, http.StatusBadRequest},
	{engine.ErrInvalidRecipient, http.StatusBadRequest},

	{engine.ErrUnknownGeneration, http.StatusNotFound},
	{engine.ErrNotBootstrapped, http.StatusServiceUnavailable},

	{engine.ErrEpochNotAdvancing, http.StatusConflict},
	{engine.ErrAlreadyAdmitted, http.StatusConflict},
	{engine.ErrRecipientIsDead, http.StatusConflict},
	{engine.ErrSenderPerished, http.StatusConflict},
	{engine.ErrInsufficientRemainingBalance, http.StatusConflict},
	{engine.ErrEmissionCapacityExceeded, http.StatusConflict},
	{engine.ErrInsufficientAllowance, http.StatusConflict},
	{engine.ErrPriceOverflow, http.StatusConflict},
	{engine.ErrStateRegression, http.StatusConflict},
}

func statusFor(err error) int {
	for _, s := range statusByErr {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// writeError maps an engine error to its status and a stable code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("internal error")
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: engine.Reason(err)})
}

// badRequest reports malformed input that never reached the engine.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}
