package apiclient

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/spec-kit/leadcrm/pkg/util/errorutil"
)

// errorBody covers the error shapes the API is known to return:
// {"message": "..."}, {"error": "..."} and {"error": {"code","message","details"}}.
type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

type nestedError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func decodeError(status int, body []byte, fallback string) *apperrors.DomainError {
	apiErr := &apperrors.DomainError{
		Code:       codeForStatus(status),
		Message:    fallback,
		HTTPStatus: status,
	}

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}

	var nested nestedError
	var flat string
	if len(parsed.Error) > 0 {
		if err := json.Unmarshal(parsed.Error, &nested); err != nil {
			_ = json.Unmarshal(parsed.Error, &flat)
		}
	}

	switch {
	case parsed.Message != "":
		apiErr.Message = parsed.Message
	case nested.Message != "":
		apiErr.Message = nested.Message
	case flat != "":
		apiErr.Message = flat
	}
	if len(nested.Details) > 0 {
		apiErr.Details = nested.Details
	}
	return apiErr
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.CodeValidation
	case http.StatusUnauthorized:
		return apperrors.CodeUnauthorized
	case http.StatusForbidden:
		return apperrors.CodeForbidden
	case http.StatusNotFound:
		return apperrors.CodeNotFound
	case http.StatusConflict:
		return apperrors.CodeConflict
	default:
		return apperrors.CodeAPI
	}
}
