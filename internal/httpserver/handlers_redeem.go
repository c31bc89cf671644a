package httpserver

import (
	"net/http"

	"github.com/vellumapp/platform/internal/errs"
	"github.com/vellumapp/platform/pkg/responders"
)

// trustedUserIDHeader carries the caller's platform user id, set by the
// gateway that authenticated the request before it reached this core. This
// core does not itself verify end-user credentials; see §4.8's note that
// webhook/API handlers pick up authentication state set upstream.
const trustedUserIDHeader = "X-User-ID"

type redeemRequest struct {
	Code string `json:"code"`
}

type redeemResponse struct {
	AuthorizeURL string   `json:"authorize_url,omitempty"`
	Items        []string `json:"items,omitempty"`
}

// handleRedeem implements the POST endpoint for §12's redeem-code flow: a
// caller posts a code and either gets back a Stripe checkout URL to
// authorize a deferred subscription grant, or the list of entitlements
// granted immediately.
func (h *handlers) handleRedeem(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(trustedUserIDHeader)
	if userID == "" {
		writeError(w, errs.New(errs.KindBadRequest, "missing caller identity"))
		return
	}

	var req redeemRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, errs.New(errs.KindBadRequest, "invalid request body"))
		return
	}
	if req.Code == "" {
		writeError(w, errs.New(errs.KindBadRequest, "code is required"))
		return
	}

	result, err := h.redeem.Redeem(r.Context(), userID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]string, 0, len(result.Items))
	for _, n := range result.Items {
		items = append(items, n.String())
	}

	responders.JSON(w, http.StatusOK, redeemResponse{AuthorizeURL: result.AuthorizeURL, Items: items})
}

// identityFromHeader is the ratelimit.IdentityFunc for user-scoped routes:
// bucket by the trusted caller id, falling back to remote address for
// requests that somehow arrive without one so they still get rate limited
// rather than bypassing the bucket entirely.
func identityFromHeader(r *http.Request) string {
	if id := r.Header.Get(trustedUserIDHeader); id != "" {
		return id
	}
	return r.RemoteAddr
}
