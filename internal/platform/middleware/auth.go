package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"reunite/pkg/requestcontext"
)

// OperatorValidator validates bearer tokens issued to hospital operators.
type OperatorValidator interface {
	ValidateToken(tokenString string) (*OperatorClaims, error)
}

// OperatorClaims are the claims the middleware needs from a validated token.
type OperatorClaims struct {
	Operator   string
	HospitalID string
	Role       string
}

type contextKeyOperatorHospital struct{}
type contextKeyRole struct{}

// GetOperatorHospital returns the hospital the operator's token was issued for.
func GetOperatorHospital(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyOperatorHospital{}).(string); ok {
		return v
	}
	return ""
}

// GetRole returns the operator role from the token.
func GetRole(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyRole{}).(string); ok {
		return v
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireOperator rejects requests without a valid operator bearer token and
// places the operator identity in the request context.
func RequireOperator(validator OperatorValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithOperatorID(ctx, claims.Operator)
			ctx = context.WithValue(ctx, contextKeyOperatorHospital{}, claims.HospitalID)
			ctx = context.WithValue(ctx, contextKeyRole{}, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the request only when the operator carries one of roles.
func RequireRole(logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetRole(r.Context())
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			logger.WarnContext(r.Context(), "forbidden - role not permitted",
				"role", role,
				"operator", requestcontext.OperatorID(r.Context()),
				"request_id", requestcontext.RequestID(r.Context()),
			)
			writeJSONError(w, http.StatusForbidden, "forbidden", "operator role not permitted")
		})
	}
}
