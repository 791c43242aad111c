package entities

import "context"

// Session is the explicit caller context passed down to services, replacing
// ad hoc lookups in browser storage.
type Session struct {
	UserID string
	Role   Role
	// ClinicID is the clinic attached to the user profile.
	ClinicID string
	// ActiveClinicID is the clinic currently selected in the UI, if any.
	ActiveClinicID string
	// Token is forwarded to the clinic API as a bearer credential.
	Token string
}

// Actor returns the user as a reference for audit fields
func (s Session) Actor() Ref {
	return Ref{ID: s.UserID}
}

type sessionKey struct{}

// ContextWithSession attaches the caller session to ctx
func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the caller session, if one was attached
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
