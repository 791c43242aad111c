package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
	"github.com/zatekoja/clinicdesk/pkg/timeutil"
)

// maxBodyBytes caps request bodies; medical notes are the largest payload
const maxBodyBytes = 1 << 20

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

type errorBody struct {
	Error  string   `json:"error"`
	Type   string   `json:"type"`
	Fields []string `json:"fields,omitempty"`
}

// statusFor maps an error category to the status the browser sees
func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusForbidden
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithAppError writes the user-facing message of a categorized error
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("unhandled error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := statusFor(appErr.Type)
	message := appErr.Message
	if appErr.Type == apperrors.ErrorTypeInternal {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("internal error")
		message = "internal server error"
	}
	respondWithJSON(w, status, errorBody{
		Error:  message,
		Type:   string(appErr.Type),
		Fields: appErr.Fields,
	})
}

// sessionFrom returns the authenticated caller, writing 401 when absent
func sessionFrom(w http.ResponseWriter, r *http.Request) (entities.Session, bool) {
	session, ok := entities.SessionFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
	}
	return session, ok
}

// decodeJSON reads a JSON body into v, writing 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			respondWithError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

// queryTime parses an optional time query parameter; values without an
// offset are read in loc
func queryTime(r *http.Request, name string, loc *time.Location) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := timeutil.ParseWire(raw, loc)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("invalid " + name + " parameter")
	}
	return t, nil
}

// queryStatuses accepts repeated and comma separated status parameters
func queryStatuses(r *http.Request) ([]entities.AppointmentStatus, error) {
	var out []entities.AppointmentStatus
	for _, value := range r.URL.Query()["status"] {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := entities.ParseAppointmentStatus(part)
			if !ok {
				return nil, apperrors.NewValidationError("unknown status " + strings.TrimSpace(part))
			}
			out = append(out, status)
		}
	}
	return out, nil
}
