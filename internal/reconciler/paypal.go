package reconciler

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vellumapp/platform/internal/circuitbreaker"
	"github.com/vellumapp/platform/internal/config"
	"github.com/vellumapp/platform/internal/docstore"
	"github.com/vellumapp/platform/internal/domain"
	"github.com/vellumapp/platform/internal/errs"
	"github.com/vellumapp/platform/internal/httputil"
	"github.com/vellumapp/platform/internal/ids"
	"github.com/vellumapp/platform/internal/money"
	"github.com/vellumapp/platform/internal/txrunner"
)

// paypalEnvelope is the subset of PayPal's webhook envelope this core
// inspects before handing the event to a typed handler.
type paypalEnvelope struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

// PaypalHeaders carries the PayPal webhook signature headers an HTTP
// handler extracts from the inbound request.
type PaypalHeaders struct {
	TransmissionID   string
	TransmissionTime string
	CertURL          string
	AuthAlgo         string
	Signature        string
}

// PaypalAuthenticator verifies PayPal's PKCS#1v1.5 webhook signature: the
// signed message is sha256(transmission_id|timestamp|webhook_id|crc32(body))
// and the verifying key is fetched from cert_url (restricted to the
// configured allowed host) and cached in-process.
type PaypalAuthenticator struct {
	cfg     config.PaypalConfig
	client  *http.Client
	breaker *circuitbreaker.Manager

	mu   sync.Mutex
	keys map[string]*rsa.PublicKey
}

func NewPaypalAuthenticator(cfg config.PaypalConfig, breaker *circuitbreaker.Manager) *PaypalAuthenticator {
	return &PaypalAuthenticator{
		cfg:     cfg,
		client:  httputil.NewClient(5 * time.Second),
		breaker: breaker,
		keys:    make(map[string]*rsa.PublicKey),
	}
}

func (a *PaypalAuthenticator) Authenticate(ctx context.Context, body []byte, h PaypalHeaders) (ProviderEvent, error) {
	if !strings.HasPrefix(h.CertURL, a.cfg.AllowedCertHost) {
		return ProviderEvent{}, errs.New(errs.KindSignatureInvalid, "paypal cert_url is not on the allowed host")
	}

	key, err := a.fetchKey(ctx, h.CertURL)
	if err != nil {
		return ProviderEvent{}, errs.Wrap(errs.KindSignatureInvalid, "fetch paypal verifying key", err)
	}

	crc := crc32.ChecksumIEEE(body)
	message := fmt.Sprintf("%s|%s|%s|%d", h.TransmissionID, h.TransmissionTime, a.cfg.WebhookID, crc)
	digest := sha256.Sum256([]byte(message))

	sig, err := base64.StdEncoding.DecodeString(h.Signature)
	if err != nil {
		return ProviderEvent{}, errs.Wrap(errs.KindSignatureInvalid, "decode paypal signature", err)
	}
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig); err != nil {
		return ProviderEvent{}, errs.Wrap(errs.KindSignatureInvalid, "verify paypal signature", err)
	}

	var env paypalEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ProviderEvent{}, errs.Wrap(errs.KindBadRequest, "decode paypal webhook envelope", err)
	}

	return ProviderEvent{
		Provider:        domain.ProviderPaypal,
		ProviderEventID: env.ID,
		EventType:       env.EventType,
		ResourceKey:     paypalResourceKey(env),
		Raw:             env,
	}, nil
}

func paypalResourceKey(env paypalEnvelope) string {
	var resource struct {
		ID                 string `json:"id"`
		BillingAgreementID string `json:"billing_agreement_id"`
	}
	_ = json.Unmarshal(env.Resource, &resource)
	if resource.BillingAgreementID != "" {
		return "agreement:" + resource.BillingAgreementID
	}
	return "resource:" + resource.ID
}

// paypalSaleAmount converts a sale's major-unit total ("10.00") into Money
// for audit purposes. An unrecognized currency code, or a malformed total,
// is recorded as unset rather than failing reconciliation over a
// bookkeeping detail.
func paypalSaleAmount(sale paypalSaleResource) *money.Money {
	asset, err := money.GetAsset(strings.ToUpper(sale.Amount.Currency))
	if err != nil {
		return nil
	}
	m, err := money.FromMajor(asset, sale.Amount.Total)
	if err != nil {
		return nil
	}
	return &m
}

// fetchKey retrieves and caches the PEM-encoded certificate at url, behind
// a single in-process lock so the first fetch blocks concurrent callers
// rather than racing duplicate fetches (§5's shared in-process key cache).
func (a *PaypalAuthenticator) fetchKey(ctx context.Context, url string) (*rsa.PublicKey, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if key, ok := a.keys[url]; ok {
		return key, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	fetch := func() (interface{}, error) {
		resp, err := a.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return io.ReadAll(resp.Body)
	}

	var raw interface{}
	if a.breaker != nil {
		raw, err = a.breaker.Execute(circuitbreaker.ServicePaypal, fetch)
	} else {
		raw, err = fetch()
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindExternalProvider, "fetch paypal cert", err)
	}
	body, _ := raw.([]byte)

	block, _ := pem.Decode(body)
	if block == nil {
		return nil, errs.New(errs.KindSignatureInvalid, "paypal cert_url did not return a PEM certificate")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}

	// A certificate outside its validity window is rejected whether expired
	// or not yet valid, the strict reading of the ambiguous original check.
	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		return nil, errs.New(errs.KindSignatureInvalid, "paypal certificate is outside its validity window")
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errs.New(errs.KindSignatureInvalid, "paypal certificate does not carry an RSA public key")
	}

	a.keys[url] = pub
	return pub, nil
}

// PaypalDispatcher implements Dispatcher for the PayPal event types §4.8
// names: a completed sale on a billing agreement creates/extends a
// subscription period; dispute and cancel events update or close it.
type PaypalDispatcher struct {
	gateway       *docstore.Gateway
	resolveUserID func(ctx context.Context, billingAgreementID string) (string, error)
}

func NewPaypalDispatcher(gateway *docstore.Gateway, resolveUserID func(ctx context.Context, billingAgreementID string) (string, error)) *PaypalDispatcher {
	return &PaypalDispatcher{gateway: gateway, resolveUserID: resolveUserID}
}

func (d *PaypalDispatcher) Dispatch(ctx context.Context, tx *txrunner.Tx, event ProviderEvent) (string, error) {
	env, ok := event.Raw.(paypalEnvelope)
	if !ok {
		return "", errs.New(errs.KindFatal, "paypal dispatcher received non-paypal event")
	}

	switch env.EventType {
	case "PAYMENT.SALE.COMPLETED":
		return d.handleSaleCompleted(ctx, tx, env)
	case "BILLING.SUBSCRIPTION.CANCELLED", "BILLING.SUBSCRIPTION.SUSPENDED":
		return d.handleSubscriptionClosed(ctx, tx, env)
	case "CUSTOMER.DISPUTE.CREATED", "CUSTOMER.DISPUTE.RESOLVED":
		return d.handleDispute(ctx, tx, env)
	default:
		return "", nil
	}
}

type paypalSaleResource struct {
	ID                  string `json:"id"`
	BillingAgreementID  string `json:"billing_agreement_id"`
	Amount struct {
		Total    string `json:"total"`
		Currency string `json:"currency"`
	} `json:"amount"`
}

func (d *PaypalDispatcher) handleSaleCompleted(ctx context.Context, tx *txrunner.Tx, env paypalEnvelope) (string, error) {
	var sale paypalSaleResource
	if err := json.Unmarshal(env.Resource, &sale); err != nil {
		return "", errs.Wrap(errs.KindBadRequest, "decode paypal sale resource", err)
	}
	if sale.BillingAgreementID == "" {
		return "", nil
	}

	userID, err := d.resolveUserID(ctx, sale.BillingAgreementID)
	if err != nil {
		return "", err
	}

	subs := docstore.NewRepository[domain.Subscription](d.gateway, docstore.CollSubscriptions)
	existing, findErr := subs.FindOne(ctx, bsonM("provider_sub_id", sale.BillingAgreementID))

	now := time.Now().UTC()
	period := domain.SubscriptionPeriod{
		ID:          ids.New().String(),
		Start:       now,
		End:         now.AddDate(0, 1, 0),
		ProviderRef: fmt.Sprintf("sale:%s", sale.ID),
		AmountPaid:  paypalSaleAmount(sale),
	}

	if errs.KindOf(findErr) == errs.KindNotFound {
		sub := domain.Subscription{
			ID:            ids.New().String(),
			UserID:        userID,
			Provider:      domain.ProviderPaypal,
			ProviderSubID: sale.BillingAgreementID,
			Status:        domain.SubscriptionActive,
			CurrentPeriod: period,
			CreatedAt:     now,
		}
		if err := subs.InsertOne(ctx, sub); err != nil {
			return "", err
		}
		tx.RegisterEvent(domain.NewEvent(domain.EventSubscriptionCreated, userID, sub.ID, nil, now))
		return sub.ID, nil
	}
	if findErr != nil {
		return "", findErr
	}

	existing.PastPeriods = append(existing.PastPeriods, existing.CurrentPeriod)
	existing.CurrentPeriod = period
	existing.Status = domain.SubscriptionActive
	if err := subs.UpsertByID(ctx, existing.ID, existing); err != nil {
		return "", err
	}
	tx.RegisterEvent(domain.NewEvent(domain.EventSubscriptionRenewed, existing.UserID, existing.ID, nil, now))
	return existing.ID, nil
}

func (d *PaypalDispatcher) handleSubscriptionClosed(ctx context.Context, tx *txrunner.Tx, env paypalEnvelope) (string, error) {
	var resource struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Resource, &resource); err != nil {
		return "", errs.Wrap(errs.KindBadRequest, "decode paypal subscription resource", err)
	}

	subs := docstore.NewRepository[domain.Subscription](d.gateway, docstore.CollSubscriptions)
	existing, err := subs.FindOne(ctx, bsonM("provider_sub_id", resource.ID))
	if errs.KindOf(err) == errs.KindNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	existing.Status = domain.SubscriptionCanceled
	existing.CurrentPeriod.End = time.Now().UTC()
	if err := subs.UpsertByID(ctx, existing.ID, existing); err != nil {
		return "", err
	}
	tx.RegisterEvent(domain.NewEvent(domain.EventSubscriptionCanceled, existing.UserID, existing.ID, nil, time.Now()))
	return existing.ID, nil
}

func (d *PaypalDispatcher) handleDispute(ctx context.Context, tx *txrunner.Tx, env paypalEnvelope) (string, error) {
	var resource struct {
		DisputeID          string `json:"dispute_id"`
		DisputedTransactions []struct {
			SellerTransactionID string `json:"seller_transaction_id"`
		} `json:"disputed_transactions"`
	}
	if err := json.Unmarshal(env.Resource, &resource); err != nil {
		return "", errs.Wrap(errs.KindBadRequest, "decode paypal dispute resource", err)
	}

	tx.RegisterEvent(domain.NewEvent(domain.EventPaymentRefunded, "", resource.DisputeID, map[string]any{
		"transaction_count": len(resource.DisputedTransactions),
	}, time.Now()))
	return "", nil
}
