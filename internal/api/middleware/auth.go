package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/observability"
	"github.com/zatekoja/clinicdesk/pkg/config"
)

// ClinicHeader carries the clinic currently selected in the UI
const ClinicHeader = "X-Clinic-ID"

// Claims are the token claims the BFF understands
type Claims struct {
	UserID   string `json:"userId,omitempty"`
	Role     string `json:"role"`
	ClinicID string `json:"clinicId,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies bearer tokens and attaches the caller session
type Authenticator struct {
	secret   []byte
	issuer   string
	disabled bool
	devRole  entities.Role
}

// NewAuthenticator creates an authenticator from auth settings
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	role, ok := entities.ParseRole(cfg.DevRole)
	if !ok {
		role = entities.RoleAdmin
	}
	return &Authenticator{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		disabled: cfg.Disabled,
		devRole:  role,
	}
}

// IssueToken signs an HS256 token for a user
func (a *Authenticator) IssueToken(userID string, role entities.Role, clinicID string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("no signing secret configured")
	}
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Role:     string(role),
		ClinicID: clinicID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns its claims
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// bearerToken reads the Authorization header. EventSource cannot set
// headers, so stream endpoints also accept an access_token query parameter.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if strings.HasPrefix(r.URL.Path, "/api/stream/") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="clinicdesk"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Middleware requires a valid token on every /api route
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		activeClinic := strings.TrimSpace(r.Header.Get(ClinicHeader))

		if a.disabled {
			session := entities.Session{UserID: "dev-user", Role: a.devRole, ActiveClinicID: activeClinic}
			next.ServeHTTP(w, r.WithContext(entities.ContextWithSession(r.Context(), session)))
			return
		}

		raw := bearerToken(r)
		if raw == "" {
			unauthorized(w, "authentication required")
			return
		}
		claims, err := a.ParseToken(raw)
		if err != nil {
			observability.LoggerFromContext(r.Context()).Debug().Err(err).Msg("token rejected")
			unauthorized(w, "invalid or expired token")
			return
		}

		role, ok := entities.ParseRole(claims.Role)
		if !ok {
			unauthorized(w, "token carries an unknown role")
			return
		}
		userID := claims.UserID
		if userID == "" {
			userID = claims.Subject
		}
		if userID == "" {
			unauthorized(w, "token carries no user")
			return
		}

		session := entities.Session{
			UserID:         userID,
			Role:           role,
			ClinicID:       claims.ClinicID,
			ActiveClinicID: activeClinic,
			Token:          raw,
		}
		next.ServeHTTP(w, r.WithContext(entities.ContextWithSession(r.Context(), session)))
	})
}
