package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"kassabook.org/internal/adminauth"
	"kassabook.org/internal/audit"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/admin/v1/auth/login",
	"/admin/v1/auth/refresh",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// withAuth validates the bearer token on every non-public request and puts
// the operator and the raw token on the context. Permission checks stay with
// the individual handlers.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		op, err := a.auth.Authorize(r.Context(), token, "")
		if err != nil {
			handleAuthError(w, r, err)
			return
		}

		ctx := adminauth.ContextWithOperator(r.Context(), op)
		ctx = adminauth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// requireOperator returns the authenticated operator or answers 401.
func (a *API) requireOperator(w http.ResponseWriter, r *http.Request) (*adminauth.Operator, bool) {
	op, ok := adminauth.OperatorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return op, true
}

// ensurePermission gates a handler on one permission code. A refusal is
// itself an audited event.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, perm string) (*adminauth.Operator, bool) {
	op, ok := a.requireOperator(w, r)
	if !ok {
		return nil, false
	}
	if err := a.auth.Require(r.Context(), op, perm); err != nil {
		if errors.Is(err, adminauth.ErrForbidden) {
			a.auditDenied(r, op, perm)
			writeError(w, r, http.StatusForbidden, "permission denied")
		} else {
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return nil, false
	}
	return op, true
}

func (a *API) auditDenied(r *http.Request, op *adminauth.Operator, perm string) {
	if a.recorder == nil {
		return
	}
	_, err := a.recorder.Record(r.Context(), audit.Event{
		OperatorID:     op.ID,
		OperatorHandle: op.Username,
		Action:         "auth.denied",
		Module:         "auth",
		Description:    fmt.Sprintf("denied %s to %s", perm, op.Username),
		Request:        audit.MetaFromRequest(r),
		Status:         audit.StatusFailure,
		ErrorMessage:   "missing permission " + perm,
	})
	if err != nil {
		a.log.Error("audit denial", zap.Error(err))
	}
}
