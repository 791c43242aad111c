package clinicapi

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
)

// errorBody covers the error shapes the backend sends: {message}, {error}
// and express-validator style {errors: [{msg}]}.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Errors  []struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
		Param   string `json:"param"`
		Path    string `json:"path"`
	} `json:"errors"`
}

func (b errorBody) text() string {
	if m := strings.TrimSpace(b.Message); m != "" {
		return m
	}
	if m := strings.TrimSpace(b.Error); m != "" {
		return m
	}
	var parts []string
	for _, e := range b.Errors {
		msg := e.Msg
		if msg == "" {
			msg = e.Message
		}
		if msg = strings.TrimSpace(msg); msg != "" {
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, "; ")
}

func (b errorBody) fields() []string {
	var fields []string
	for _, e := range b.Errors {
		name := e.Path
		if name == "" {
			name = e.Param
		}
		if name != "" {
			fields = append(fields, name)
		}
	}
	return fields
}

func serverMessage(body []byte) (string, []string) {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", nil
	}
	return parsed.text(), parsed.fields()
}

// mapStatusError turns a non-2xx response into the error taxonomy
func mapStatusError(status int, body []byte, action string) error {
	msg, fields := serverMessage(body)

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "the clinic API rejected the request"
		}
		return &apperrors.AppError{
			Type:       apperrors.ErrorTypeValidation,
			Message:    msg,
			Fields:     fields,
			StatusCode: status,
		}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		appErr := apperrors.NewUnauthorizedError(action, msg)
		appErr.StatusCode = status
		return appErr
	case status == http.StatusNotFound:
		if msg == "" {
			msg = "not found"
		}
		return apperrors.NewNotFoundError(msg)
	case status == http.StatusConflict:
		if msg == "" {
			msg = "the selected time slot is already booked"
		}
		return apperrors.NewConflictError(msg)
	}

	return apperrors.NewServerError(msg, status, nil)
}
