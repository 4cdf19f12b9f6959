package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"newsdesk/internal/gateway"
	"newsdesk/internal/httputil"
	"newsdesk/internal/model"
)

// tokenFromRequest finds the access token: Authorization header first, then
// the access_token cookie for browser clients.
func tokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	cookie, err := r.Cookie("access_token")
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// parseSession validates a token and extracts the session it carries.
func parseSession(tokenString, jwtSecret string) (gateway.Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return gateway.Session{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return gateway.Session{}, jwt.ErrTokenInvalidClaims
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return gateway.Session{}, jwt.ErrTokenInvalidClaims
	}

	role := model.RoleUser
	if roleClaim, ok := claims["role"].(string); ok && roleClaim != "" {
		role = model.Role(roleClaim)
	}

	return gateway.Session{UserID: int64(userIDFloat), Role: role}, nil
}

// Auth validates the JWT and stores the session on the request context.
// Requests without a valid token are rejected.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				httputil.WriteUnauthorized(w, "Missing authentication token")
				return
			}

			session, err := parseSession(tokenString, jwtSecret)
			if err != nil {
				if strings.Contains(err.Error(), "expired") {
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Access token has expired")
					return
				}
				httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				return
			}

			next.ServeHTTP(w, r.WithContext(gateway.WithSession(r.Context(), session)))
		})
	}
}

// OptionalAuth stores the session when a valid token is present and lets
// anonymous requests through untouched. Endpoints like comment submission
// and the public thread serve both audiences.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := tokenFromRequest(r); tokenString != "" {
				if session, err := parseSession(tokenString, jwtSecret); err == nil {
					r = r.WithContext(gateway.WithSession(r.Context(), session))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly rejects sessions without the admin role. Must run after Auth.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := gateway.SessionFromContext(r.Context())
		if !ok {
			httputil.WriteUnauthorized(w, "Authentication required")
			return
		}
		if session.Role != model.RoleAdmin {
			httputil.WriteForbidden(w, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
