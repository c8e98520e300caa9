package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	domainErrors "github.com/storekit/paygate/internal/domain/errors"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrOrderNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrAlreadyProcessed, http.StatusConflict, "already_processed"},
	{domainErrors.ErrOwnershipMismatch, http.StatusForbidden, "forbidden"},
	{domainErrors.ErrAmountMismatch, http.StatusUnprocessableEntity, "amount_mismatch"},
	{domainErrors.ErrRateLimited, http.StatusTooManyRequests, "rate_limit"},
	{domainErrors.ErrMissingToken, http.StatusBadRequest, "missing_token"},
	{domainErrors.ErrInvalidFormat, http.StatusBadRequest, "invalid_token"},
	{domainErrors.ErrTokenNotFound, http.StatusUnprocessableEntity, "token_not_found"},
	{domainErrors.ErrTransport, http.StatusBadGateway, "provider_unreachable"},
	{domainErrors.ErrProviderRateLimited, http.StatusBadGateway, "provider_throttled"},
	{domainErrors.ErrAuthKeyMismatch, http.StatusBadGateway, "provider_error"},
	{domainErrors.ErrMalformedResponse, http.StatusBadGateway, "provider_error"},
	{domainErrors.ErrUnexpectedStatus, http.StatusBadGateway, "provider_error"},
	{domainErrors.ErrGatewayDisabled, http.StatusServiceUnavailable, "gateway_disabled"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeSuccess wraps v in the {success, data} envelope.
func writeSuccess(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, APIResponse{Success: true, Data: v})
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := &APIError{Message: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		apiErr.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, APIResponse{Error: apiErr})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			apiErr.Code = m.code
			writeJSON(w, m.status, APIResponse{Error: apiErr})
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		apiErr.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, APIResponse{Error: apiErr})
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	apiErr.Code = "internal_error"
	apiErr.Message = "internal server error"
	writeJSON(w, http.StatusInternalServerError, APIResponse{Error: apiErr})
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
