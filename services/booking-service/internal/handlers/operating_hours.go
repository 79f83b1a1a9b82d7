package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/storage"
)

// PolicyInvalidator drops cached copies of a salon's policy.
type PolicyInvalidator interface {
	Invalidate(ctx context.Context, salonID string) error
}

type OperatingHoursHandler struct {
	repo     *storage.Repository
	events   *outbox.Store
	policies policy.Provider
	cache    PolicyInvalidator
	logger   *slog.Logger
}

func NewOperatingHoursHandler(repo *storage.Repository, events *outbox.Store, policies policy.Provider, cache PolicyInvalidator, logger *slog.Logger) *OperatingHoursHandler {
	return &OperatingHoursHandler{
		repo:     repo,
		events:   events,
		policies: policies,
		cache:    cache,
		logger:   logger,
	}
}

func (h *OperatingHoursHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// get returns the effective policy, which is the default policy for salons that never saved one.
func (h *OperatingHoursHandler) get(w http.ResponseWriter, r *http.Request) {
	salonID := strings.TrimSpace(r.URL.Query().Get("salon_id"))
	if salonID == "" {
		http.Error(w, "salon_id required", http.StatusBadRequest)
		return
	}
	p, err := h.policies.GetOperatingHours(r.Context(), salonID)
	if err != nil {
		h.logger.Error("failed to load operating hours", "salon_id", salonID, "err", err)
		http.Error(w, "failed to load operating hours", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *OperatingHoursHandler) put(w http.ResponseWriter, r *http.Request) {
	var p policy.OperatingHours
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	p.SalonID = strings.TrimSpace(p.SalonID)
	if p.SalonID == "" {
		http.Error(w, "salon_id required", http.StatusBadRequest)
		return
	}
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.UpsertOperatingHours(ctx, tx, p); err != nil {
		h.logger.Error("failed to save operating hours", "salon_id", p.SalonID, "err", err)
		http.Error(w, "failed to save operating hours", http.StatusInternalServerError)
		return
	}
	evt, err := outbox.OperatingHoursUpdated(p)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.events.Append(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, p.SalonID); err != nil {
			h.logger.Warn("policy cache invalidation failed; stale until ttl", "salon_id", p.SalonID, "err", err)
		}
	}
	h.logger.Info("operating hours updated", "salon_id", p.SalonID)
	writeJSON(w, http.StatusOK, p)
}
