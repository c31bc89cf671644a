package httpserver

import (
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/pkg/responders"
)

// handleListWebhookEvents gives an operator visibility into the reconciler's
// idempotency ledger: which inbound provider webhooks are sitting in
// WebhookFailed (worth investigating) versus WebhookProcessing (a commit
// that may have crashed mid-flight) versus WebhookCompleted. Gated behind
// the same admin API key as /metrics.
//
// GET /admin/webhooks?status=failed&limit=100
func (h *handlers) handleListWebhookEvents(w http.ResponseWriter, r *http.Request) {
	filter := bson.M{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = domain.WebhookEventStatus(status)
	}

	limit := int64(100)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	repo := docstore.NewRepository[domain.WebhookEvent](h.gateway(), docstore.CollWebhookEvents)
	events, err := repo.Find(r.Context(), filter, options.Find().SetLimit(limit).SetSort(bson.M{"received_at": -1}))
	if err != nil {
		writeError(w, err)
		return
	}

	responders.JSON(w, http.StatusOK, map[string]any{"events": events})
}
