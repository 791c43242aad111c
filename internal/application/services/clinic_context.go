package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/providers"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
)

const (
	defaultClinicKeyPrefix = "default-clinic:"
	defaultClinicTTL       = 90 * 24 * time.Hour
)

// ClinicContextResolver picks the clinic a request operates on. Precedence:
// explicit argument, the user's own clinic, the clinic selected in the UI,
// the user's persisted default, the configured default.
type ClinicContextResolver struct {
	cache           providers.CacheProvider
	defaultClinicID string
}

// NewClinicContextResolver creates a resolver. cache may be nil.
func NewClinicContextResolver(cache providers.CacheProvider, defaultClinicID string) *ClinicContextResolver {
	return &ClinicContextResolver{
		cache:           cache,
		defaultClinicID: strings.TrimSpace(defaultClinicID),
	}
}

func defaultClinicKey(userID string) string {
	return defaultClinicKeyPrefix + userID
}

// ResolveClinicID returns the clinic id for ctx, or "" when nothing is known
func (r *ClinicContextResolver) ResolveClinicID(ctx context.Context, explicit string) (string, error) {
	if id, ok := entities.NormalizeID(explicit); ok {
		return id, nil
	}

	session, hasSession := entities.SessionFromContext(ctx)
	if hasSession {
		if id, ok := entities.NormalizeID(session.ClinicID); ok {
			return id, nil
		}
		if id, ok := entities.NormalizeID(session.ActiveClinicID); ok {
			return id, nil
		}
		if id, err := r.DefaultClinic(ctx, session.UserID); err != nil {
			// a cache outage must not block scheduling
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("user_id", session.UserID).Msg("default clinic lookup failed")
		} else if id != "" {
			return id, nil
		}
	}

	return r.defaultClinicID, nil
}

// DefaultClinic returns the persisted default clinic of a user
func (r *ClinicContextResolver) DefaultClinic(ctx context.Context, userID string) (string, error) {
	if r.cache == nil || strings.TrimSpace(userID) == "" {
		return "", nil
	}
	value, found, err := r.cache.Get(ctx, defaultClinicKey(userID))
	if err != nil {
		return "", fmt.Errorf("failed to read default clinic: %w", err)
	}
	if !found {
		return "", nil
	}
	return strings.TrimSpace(string(value)), nil
}

// SetDefaultClinic persists the clinic a user last selected
func (r *ClinicContextResolver) SetDefaultClinic(ctx context.Context, userID, clinicID string) error {
	id, ok := entities.NormalizeID(clinicID)
	if !ok {
		return apperrors.NewMissingFieldsError([]string{"clinicId"})
	}
	if strings.TrimSpace(userID) == "" {
		return apperrors.NewValidationError("a signed-in user is required to store a default clinic")
	}
	if r.cache == nil {
		return apperrors.NewInternalError("no store configured for default clinics", nil)
	}
	if err := r.cache.Set(ctx, defaultClinicKey(userID), []byte(id), defaultClinicTTL); err != nil {
		return fmt.Errorf("failed to store default clinic: %w", err)
	}
	return nil
}

// ClearDefaultClinic forgets a user's persisted default clinic
func (r *ClinicContextResolver) ClearDefaultClinic(ctx context.Context, userID string) error {
	if r.cache == nil || strings.TrimSpace(userID) == "" {
		return nil
	}
	if err := r.cache.Delete(ctx, defaultClinicKey(userID)); err != nil {
		return fmt.Errorf("failed to clear default clinic: %w", err)
	}
	return nil
}
