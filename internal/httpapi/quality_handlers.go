package httpapi

import (
	"net/http"
	"strings"

	"kassabook.org/internal/adminauth"
	"kassabook.org/internal/audit"
	"kassabook.org/internal/dataquality"
)

type reportCheckRequest struct {
	CheckType       string         `json:"check_type"`
	Severity        string         `json:"severity"`
	TargetTable     string         `json:"target_table"`
	TargetID        string         `json:"target_id"`
	Description     string         `json:"description"`
	Details         map[string]any `json:"details"`
	TotalRecords    int64          `json:"total_records"`
	AffectedRecords int64          `json:"affected_records"`
}

type resolveCheckRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (a *API) handleQualityChecks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.ensurePermission(w, r, adminauth.PermDataIntegrityCheck); !ok {
			return
		}
		checks, err := a.quality.List(r.Context(), dataquality.Filter{
			Status:   r.URL.Query().Get("status"),
			Severity: r.URL.Query().Get("severity"),
		})
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		if checks == nil {
			checks = []*dataquality.Check{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"checks": checks})

	case http.MethodPost:
		if _, ok := a.ensurePermission(w, r, adminauth.PermDataIntegrityCheck); !ok {
			return
		}
		var req reportCheckRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		check := &dataquality.Check{
			CheckType:       req.CheckType,
			Severity:        req.Severity,
			TargetTable:     req.TargetTable,
			TargetID:        req.TargetID,
			Description:     req.Description,
			Details:         req.Details,
			TotalRecords:    req.TotalRecords,
			AffectedRecords: req.AffectedRecords,
		}
		if err := a.quality.Report(r.Context(), check); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, check)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleQualityResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/admin/v1/data-quality/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	if len(parts) == 2 && parts[1] == "resolve" {
		a.handleQualityResolve(w, r, parts[0])
		return
	}
	if len(parts) != 1 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.ensurePermission(w, r, adminauth.PermDataIntegrityCheck); !ok {
		return
	}
	check, err := a.quality.Get(r.Context(), parts[0])
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (a *API) handleQualityResolve(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := a.ensurePermission(w, r, adminauth.PermDataIntegrityCheck)
	if !ok {
		return
	}
	var req resolveCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	check, err := a.quality.Resolve(r.Context(), actor.ID, actor.Username, id, req.Status, req.Note, audit.MetaFromRequest(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}
