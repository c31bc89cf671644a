package httpserver

import (
	"io"
	"net/http"

	"github.com/vellumapp/platform/internal/errs"
	"github.com/vellumapp/platform/internal/reconciler"
)

// handleStripeWebhook verifies and reconciles one Stripe event per request,
// per §4.8. Stripe retries on any non-2xx, so a replay of an already
// processed event, which Reconcile acknowledges without an error, still
// reports 200 rather than triggering a pointless retry.
func (h *handlers) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, errs.New(errs.KindBadRequest, "could not read request body"))
		return
	}

	event, err := h.stripeAuth.Authenticate(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn().Err(err).Msg("stripe webhook authentication failed")
		writeError(w, err)
		return
	}

	if err := h.reconciler.Reconcile(r.Context(), event, h.stripeDispatch.Dispatch); err != nil {
		h.logger.Error().Err(err).Str("event_type", event.EventType).Msg("stripe webhook reconcile failed")
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handlePaypalWebhook mirrors handleStripeWebhook for PayPal's signature
// scheme: the four PAYPAL-TRANSMISSION-* headers plus the raw body feed the
// PKCS#1v1.5 verification in PaypalAuthenticator.
func (h *handlers) handlePaypalWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, errs.New(errs.KindBadRequest, "could not read request body"))
		return
	}

	headers := reconciler.PaypalHeaders{
		TransmissionID:   r.Header.Get("Paypal-Transmission-Id"),
		TransmissionTime: r.Header.Get("Paypal-Transmission-Time"),
		CertURL:          r.Header.Get("Paypal-Cert-Url"),
		AuthAlgo:         r.Header.Get("Paypal-Auth-Algo"),
		Signature:        r.Header.Get("Paypal-Transmission-Sig"),
	}

	event, err := h.paypalAuth.Authenticate(r.Context(), body, headers)
	if err != nil {
		h.logger.Warn().Err(err).Msg("paypal webhook authentication failed")
		writeError(w, err)
		return
	}

	if err := h.reconciler.Reconcile(r.Context(), event, h.paypalDispatch.Dispatch); err != nil {
		h.logger.Error().Err(err).Str("event_type", event.EventType).Msg("paypal webhook reconcile failed")
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
