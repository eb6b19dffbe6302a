package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	SessionCookieName = "lr_session"
	// SessionTokenHeader carries a re-issued token for clients that send it as a Bearer header.
	SessionTokenHeader = "X-Session-Token"

	jwtClaimSessionID = "sid"
)

var ErrInvalidSessionToken = errors.New("invalid session token")

// Sessions signs and verifies the token that binds a browser to its
// server-side session. The token travels in a cookie or as a Bearer header.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	logger *slog.Logger
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration, secureCookie bool, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secureCookie,
		logger: logger,
		now:    time.Now,
	}
}

// Issue signs a token for sessionID and sets it as a cookie on w.
func (s *Sessions) Issue(w http.ResponseWriter, sessionID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		jwtClaimSessionID: sessionID,
		"exp":             now.Add(s.ttl).Unix(),
		"iat":             now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    tokenString,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return tokenString, nil
}

// Verify returns the session id carried by tokenString.
func (s *Sessions) Verify(tokenString string) (string, error) {
	sid, _, err := s.verify(tokenString)
	return sid, err
}

func (s *Sessions) verify(tokenString string) (string, time.Time, error) {
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	token, err := parser.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", time.Time{}, ErrInvalidSessionToken
	}
	sid, ok := claims[jwtClaimSessionID].(string)
	if !ok || sid == "" {
		return "", time.Time{}, fmt.Errorf("%w: missing '%s' claim", ErrInvalidSessionToken, jwtClaimSessionID)
	}
	var issuedAt time.Time
	if iat, ok := claims["iat"].(float64); ok {
		issuedAt = time.Unix(int64(iat), 0)
	}
	return sid, issuedAt, nil
}

// RequireSession rejects requests without a valid session token and stores
// the session id in the request context. A token past half of its lifetime is
// re-issued (cookie and SessionTokenHeader), so the token lives as long as
// the session keeps being used.
func (s *Sessions) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "session token is required")
			return
		}
		sid, issuedAt, err := s.verify(tokenString)
		if err != nil {
			s.logger.DebugContext(r.Context(), "Rejected session token", slog.Any("error", err))
			writeError(w, http.StatusUnauthorized, "invalid or expired session token")
			return
		}
		if s.now().Sub(issuedAt) > s.ttl/2 {
			if fresh, err := s.Issue(w, sid); err != nil {
				s.logger.WarnContext(r.Context(), "Failed to refresh session token", slog.Any("error", err))
			} else {
				w.Header().Set(SessionTokenHeader, fresh)
			}
		}
		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sid)))
	})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
