package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
)

func clinicPath(id string) string {
	return "/clinics/" + url.PathEscape(id)
}

type clinicDTO struct {
	MongoID   entities.Ref            `json:"_id"`
	ID        entities.Ref            `json:"id"`
	Name      string                  `json:"name"`
	Address   json.RawMessage         `json:"address"`
	Phone     string                  `json:"phone"`
	Email     string                  `json:"email"`
	IsActive  bool                    `json:"isActive"`
	Settings  entities.ClinicSettings `json:"settings"`
	CreatedAt string                  `json:"createdAt"`
	UpdatedAt string                  `json:"updatedAt"`
}

// clinicEnvelope decodes a bare clinic or {clinic: {...}} / {data: {...}}
type clinicEnvelope struct {
	clinic *clinicDTO
}

func (e *clinicEnvelope) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		Clinic *clinicDTO `json:"clinic"`
		Data   *clinicDTO `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		if wrapped.Clinic != nil {
			e.clinic = wrapped.Clinic
			return nil
		}
		if wrapped.Data != nil {
			e.clinic = wrapped.Data
			return nil
		}
	}
	var bare clinicDTO
	if err := json.Unmarshal(data, &bare); err != nil {
		return err
	}
	e.clinic = &bare
	return nil
}

// formatAddress flattens a structured address into one display line
func formatAddress(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var parts struct {
		Street  string `json:"street"`
		City    string `json:"city"`
		State   string `json:"state"`
		ZipCode string `json:"zipCode"`
		Country string `json:"country"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var out []string
	for _, p := range []string{parts.Street, parts.City, parts.State, parts.ZipCode, parts.Country} {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func (c *HTTPClient) toClinic(env clinicEnvelope) (*entities.Clinic, error) {
	if env.clinic == nil {
		return nil, apperrors.NewServerError("empty response from clinic API", 0, nil)
	}
	d := env.clinic
	id := d.MongoID.ID
	if id == "" {
		id = d.ID.ID
	}
	return &entities.Clinic{
		ID:        id,
		Name:      d.Name,
		Address:   formatAddress(d.Address),
		Phone:     d.Phone,
		Email:     d.Email,
		IsActive:  d.IsActive,
		Settings:  d.Settings,
		CreatedAt: optionalTime(d.CreatedAt, c.location),
		UpdatedAt: optionalTime(d.UpdatedAt, c.location),
	}, nil
}

// GetClinic fetches a clinic profile
func (c *HTTPClient) GetClinic(ctx context.Context, clinicID string) (*entities.Clinic, error) {
	id, err := requireID(clinicID, "clinicId")
	if err != nil {
		return nil, err
	}
	var env clinicEnvelope
	if err := c.doJSON(ctx, call{
		operation: "get_clinic",
		action:    "view this clinic",
		method:    http.MethodGet,
		path:      clinicPath(id),
	}, &env); err != nil {
		return nil, err
	}
	return c.toClinic(env)
}

// UpdateClinicSettings replaces the scheduling settings of a clinic
func (c *HTTPClient) UpdateClinicSettings(ctx context.Context, clinicID string, settings entities.ClinicSettings) (*entities.Clinic, error) {
	id, err := requireID(clinicID, "clinicId")
	if err != nil {
		return nil, err
	}
	var env clinicEnvelope
	if err := c.doJSON(ctx, call{
		operation: "update_clinic_settings",
		action:    "change clinic settings",
		method:    http.MethodPut,
		path:      clinicPath(id) + "/settings",
		body:      settings,
	}, &env); err != nil {
		return nil, err
	}
	return c.toClinic(env)
}

// GetSubscription fetches the clinic's plan
func (c *HTTPClient) GetSubscription(ctx context.Context, clinicID string) (*entities.Subscription, error) {
	id, err := requireID(clinicID, "clinicId")
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.doJSON(ctx, call{
		operation: "get_subscription",
		action:    "view the subscription",
		method:    http.MethodGet,
		path:      clinicPath(id) + "/subscription",
	}, &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		Subscription *entities.Subscription `json:"subscription"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, apperrors.NewServerError("unexpected subscription from clinic API", 0, err)
	}
	if wrapped.Subscription != nil {
		return wrapped.Subscription, nil
	}
	var sub entities.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, apperrors.NewServerError("unexpected subscription from clinic API", 0, err)
	}
	return &sub, nil
}

// GetClinicStatistics fetches the clinic-level summary
func (c *HTTPClient) GetClinicStatistics(ctx context.Context, clinicID string) (*entities.ClinicStatistics, error) {
	id, err := requireID(clinicID, "clinicId")
	if err != nil {
		return nil, err
	}
	var out struct {
		entities.ClinicStatistics
		Statistics *entities.ClinicStatistics `json:"statistics"`
	}
	if err := c.doJSON(ctx, call{
		operation: "get_clinic_statistics",
		action:    "view clinic statistics",
		method:    http.MethodGet,
		path:      clinicPath(id) + "/statistics",
	}, &out); err != nil {
		return nil, err
	}
	if out.Statistics != nil {
		return out.Statistics, nil
	}
	return &out.ClinicStatistics, nil
}

type staffDTO struct {
	MongoID   entities.Ref `json:"_id"`
	ID        entities.Ref `json:"id"`
	FirstName string       `json:"firstName"`
	LastName  string       `json:"lastName"`
	Email     string       `json:"email"`
	Role      string       `json:"role"`
	IsActive  *bool        `json:"isActive"`
}

func (d staffDTO) toEntity() entities.StaffMember {
	id := d.MongoID.ID
	if id == "" {
		id = d.ID.ID
	}
	role, ok := entities.ParseRole(d.Role)
	if !ok {
		role = entities.Role(d.Role)
	}
	active := true
	if d.IsActive != nil {
		active = *d.IsActive
	}
	return entities.StaffMember{
		ID:        id,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
		Role:      role,
		IsActive:  active,
	}
}

// staffList decodes a bare array or {staff|data: [...]}
type staffList []staffDTO

func (l *staffList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []staffDTO
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var wrapped struct {
		Staff []staffDTO `json:"staff"`
		Data  []staffDTO `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if wrapped.Staff != nil {
		*l = wrapped.Staff
	} else {
		*l = wrapped.Data
	}
	return nil
}

// ListStaff lists the users attached to a clinic
func (c *HTTPClient) ListStaff(ctx context.Context, clinicID string) ([]entities.StaffMember, error) {
	id, err := requireID(clinicID, "clinicId")
	if err != nil {
		return nil, err
	}
	var out staffList
	if err := c.doJSON(ctx, call{
		operation: "list_staff",
		action:    "view staff",
		method:    http.MethodGet,
		path:      clinicPath(id) + "/staff",
	}, &out); err != nil {
		return nil, err
	}
	members := make([]entities.StaffMember, 0, len(out))
	for _, s := range out {
		members = append(members, s.toEntity())
	}
	return members, nil
}

// AddStaff attaches a user to a clinic
func (c *HTTPClient) AddStaff(ctx context.Context, clinicID string, invite entities.StaffInvite) (*entities.StaffMember, error) {
	id, err := requireID(clinicID, "clinicId")
	if err != nil {
		return nil, err
	}
	var missing []string
	if strings.TrimSpace(invite.Email) == "" {
		missing = append(missing, "email")
	}
	if invite.Role == "" {
		missing = append(missing, "role")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewMissingFieldsError(missing)
	}
	if role, ok := entities.ParseRole(string(invite.Role)); ok {
		invite.Role = role
	} else {
		return nil, apperrors.NewValidationError("unknown role " + string(invite.Role))
	}

	var out struct {
		staffDTO
		Staff *staffDTO `json:"staff"`
	}
	if err := c.doJSON(ctx, call{
		operation: "add_staff",
		action:    "add staff",
		method:    http.MethodPost,
		path:      clinicPath(id) + "/staff",
		body:      invite,
	}, &out); err != nil {
		return nil, err
	}
	dto := out.staffDTO
	if out.Staff != nil {
		dto = *out.Staff
	}
	member := dto.toEntity()
	return &member, nil
}

// RemoveStaff detaches a user from a clinic
func (c *HTTPClient) RemoveStaff(ctx context.Context, clinicID, staffID string) error {
	id, err := requireID(clinicID, "clinicId")
	if err != nil {
		return err
	}
	sid, err := requireID(staffID, "staffId")
	if err != nil {
		return err
	}
	return c.doJSON(ctx, call{
		operation: "remove_staff",
		action:    "remove staff",
		method:    http.MethodDelete,
		path:      clinicPath(id) + "/staff/" + url.PathEscape(sid),
	}, nil)
}

// ActivateClinic marks a clinic active
func (c *HTTPClient) ActivateClinic(ctx context.Context, clinicID string) (*entities.Clinic, error) {
	id, err := requireID(clinicID, "clinicId")
	if err != nil {
		return nil, err
	}
	var env clinicEnvelope
	if err := c.doJSON(ctx, call{
		operation: "activate_clinic",
		action:    "activate this clinic",
		method:    http.MethodPut,
		path:      clinicPath(id) + "/activate",
	}, &env); err != nil {
		return nil, err
	}
	if env.clinic == nil {
		return c.GetClinic(ctx, id)
	}
	return c.toClinic(env)
}
