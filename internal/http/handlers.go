package http

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"gastos/internal/backend"
	"gastos/internal/log"

	"github.com/go-chi/chi/v5"
)

const readyTimeout = 5 * time.Second

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady checks that the backend answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status, httpStatus := "ready", http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients()},
		"security":     map[string]any{"suspicious_requests": s.detector.SuspiciousRequests()},
	}
	if err := s.dashboard.Ready(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Backend not ready",
			log.FieldOperation, log.OpReady, log.FieldError, err)
		checks["backend"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
	}

	writeJSON(w, r, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	view, err := s.dashboard.Home(r.Context(), userID)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	period, err := ParsePeriod(r.URL.Query(), s.dashboard.Location())
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	view, err := s.dashboard.Analysis(r.Context(), userID, period)
	if err != nil {
		writeError(w, r, log.OpAggregate, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	view, err := s.dashboard.History(r.Context(), userID, ParseHistoryFilter(r.URL.Query()))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	cats, err := s.dashboard.Categories(r.Context(), userID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"categories": cats})
}

// handleRefresh drops the cached list and fetches it again, so the next view
// reflects changes made outside this service.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, log.OpSync, err)
		return
	}
	txs, err := s.dashboard.Refresh(r.Context(), userID)
	if err != nil {
		writeError(w, r, log.OpSync, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"count":        len(txs),
		"refreshed_at": s.now().Format(time.RFC3339),
	})
}

// handleExport streams the CSV export as an attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	loc := s.dashboard.Location()
	rng, err := ParseExportRange(r.URL.Query(), s.now(), loc)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	exp, err := s.dashboard.Export(ctx, userID, rng)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	streamExport(w, r, exp, log.NewFields().WithUser(userID))
}

// handleExportAll streams the backend's unscoped export.
func (s *Server) handleExportAll(w http.ResponseWriter, r *http.Request) {
	exp, err := s.dashboard.ExportAll(r.Context())
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	streamExport(w, r, exp, log.NewFields())
}

func streamExport(w http.ResponseWriter, r *http.Request, exp *backend.Export, fields log.LogFields) {
	defer exp.Body.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": exp.Filename}))
	w.WriteHeader(http.StatusOK)
	if n, err := io.Copy(w, exp.Body); err != nil {
		fields["bytes_written"] = n
		log.LogError(r.Context(), "Export stream interrupted", err, log.ErrorTypeNetwork, log.OpExport, fields)
	}
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	u, err := parseTransactionUpdate(w, r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if err := s.dashboard.UpdateTransaction(r.Context(), userID, id, u); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"id":             id,
		"amount":         u.Amount,
		"payment_method": u.PaymentMethod,
	})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := s.dashboard.DeleteTransaction(r.Context(), userID, id); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, log.OpPrefs, err)
		return
	}
	prefs, err := s.dashboard.Preferences(r.Context(), userID)
	if err != nil {
		writeError(w, r, log.OpPrefs, err)
		return
	}
	writeJSON(w, r, http.StatusOK, prefs)
}

func (s *Server) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, r, log.OpPrefs, err)
		return
	}
	prefs, err := parsePreferences(w, r)
	if err != nil {
		writeError(w, r, log.OpPrefs, err)
		return
	}
	saved, err := s.dashboard.SavePreferences(r.Context(), userID, prefs)
	if err != nil {
		writeError(w, r, log.OpPrefs, err)
		return
	}
	writeJSON(w, r, http.StatusOK, saved)
}
