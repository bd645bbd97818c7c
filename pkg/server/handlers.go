package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloudvigil/cloudvigil/pkg/detect"
	"github.com/cloudvigil/cloudvigil/pkg/findings"
	"github.com/cloudvigil/cloudvigil/pkg/inventory"
	"github.com/cloudvigil/cloudvigil/pkg/report"
	"github.com/cloudvigil/cloudvigil/pkg/rules"
	"github.com/cloudvigil/cloudvigil/pkg/scan"
)

type handler struct {
	deps   Dependencies
	logger *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

type startScanRequest struct {
	TenantID string   `json:"tenant_id"`
	Provider string   `json:"provider"`
	Regions  []string `json:"regions,omitempty"`
}

type startScanResponse struct {
	RunID string `json:"run_id"`
}

func (h *handler) startScan(w http.ResponseWriter, r *http.Request) {
	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.TenantID == "" {
		req.TenantID = "default"
	}

	account := scan.CloudAccount{
		ID:       chi.URLParam(r, "account"),
		TenantID: req.TenantID,
		Provider: inventory.Provider(req.Provider),
		Regions:  req.Regions,
	}

	collectors, err := h.deps.NewCollectors(r.Context(), account)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	runID, err := h.deps.Orchestrator.StartScan(r.Context(), account, collectors)
	if err != nil {
		if errors.Is(err, scan.ErrScanInProgress) {
			h.writeError(w, http.StatusConflict, err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, startScanResponse{RunID: runID})
}

func (h *handler) scanProgress(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.Orchestrator.Progress(chi.URLParam(r, "run"))
	if err != nil {
		if errors.Is(err, scan.ErrRunNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

func (h *handler) cancelScan(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Orchestrator.Cancel(chi.URLParam(r, "run"))
	if err != nil {
		if errors.Is(err, scan.ErrRunNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listFindings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := findings.Filter{
		Status:        findings.Status(q.Get("status")),
		Family:        inventory.Family(q.Get("family")),
		Scenario:      q.Get("scenario"),
		MinConfidence: detect.Confidence(q.Get("min_confidence")),
	}

	got, err := h.deps.Findings.List(r.Context(), chi.URLParam(r, "account"), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, got)
}

func (h *handler) exportFindings(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	all, err := h.deps.Findings.List(r.Context(), account, findings.Filter{})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	doc := report.Build(account, all, time.Now())

	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		if err := report.WriteCSV(w, doc); err != nil {
			h.logger.Error("writing csv export", "error", err)
		}
	default:
		w.Header().Set("Content-Type", "application/json")
		if err := report.WriteJSON(w, doc); err != nil {
			h.logger.Error("writing json export", "error", err)
		}
	}
}

type ruleResponse struct {
	Family    inventory.Family    `json:"resource_family"`
	Effective rules.DetectionRule `json:"effective"`
	Override  *rules.Override     `json:"override,omitempty"`
}

func (h *handler) getRule(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	family := inventory.Family(chi.URLParam(r, "family"))

	effective, err := h.deps.Rules.EffectiveRule(r.Context(), tenant, family)
	if err != nil {
		h.writeError(w, http.StatusNotFound, err)
		return
	}

	resp := ruleResponse{Family: family, Effective: effective}
	if o, ok, err := h.deps.Rules.GetOverride(r.Context(), tenant, family); err == nil && ok {
		resp.Override = &o
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) putRule(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	family := inventory.Family(chi.URLParam(r, "family"))

	var o rules.Override
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.deps.Rules.SetOverride(r.Context(), tenant, family, o); err != nil {
		var confErr *rules.ConfigurationError
		if errors.As(err, &confErr) {
			h.writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.getRule(w, r)
}

func (h *handler) resetRule(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	family := inventory.Family(chi.URLParam(r, "family"))

	if err := h.deps.Rules.ResetToDefault(r.Context(), tenant, family); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
