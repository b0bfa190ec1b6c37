package provider

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const NameFlutterwave = "flutterwave"

type FlutterwaveConfig struct {
	Secret  string
	BaseURL string
	Timeout time.Duration
}

// Flutterwave charges in major units and signs webhooks with HMAC-SHA256.
type Flutterwave struct {
	cfg    FlutterwaveConfig
	client *http.Client
	now    func() time.Time
}

func NewFlutterwave(cfg FlutterwaveConfig) *Flutterwave {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Flutterwave{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (f *Flutterwave) Name() string { return NameFlutterwave }

type flwInitReq struct {
	TxRef    string            `json:"tx_ref"`
	Amount   string            `json:"amount"`
	Currency string            `json:"currency"`
	Customer map[string]string `json:"customer"`
	Meta     map[string]string `json:"meta,omitempty"`
}

type flwEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *Flutterwave) Initialize(ctx context.Context, req InitializeRequest) (*GatewayResponse, error) {
	body := flwInitReq{
		TxRef:    req.Reference,
		Amount:   req.Amount.StringFixed(2),
		Currency: req.Currency,
		Customer: map[string]string{"email": req.Email, "phonenumber": req.Phone},
		Meta:     req.Metadata,
	}

	var env flwEnvelope
	if err := doJSON(ctx, f.client, http.MethodPost, f.cfg.BaseURL+"/payments", f.cfg.Secret, body, &env); err != nil {
		return nil, err
	}
	if env.Status != "success" {
		return nil, ErrGatewayRejected
	}
	var data struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, ErrUpstream
	}

	return &GatewayResponse{
		ProviderReference: req.Reference,
		PaymentURL:        data.Link,
		RedirectURL:       data.Link,
		ExpiresAt:         f.now().Add(MaxSessionTTL),
	}, nil
}

type flwVerifyData struct {
	TxRef       string          `json:"tx_ref"`
	Status      string          `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CreatedDate string          `json:"created_datetime"`
}

func (f *Flutterwave) Verify(ctx context.Context, providerReference string) (*VerificationResult, error) {
	url := f.cfg.BaseURL + "/transactions/verify_by_reference?tx_ref=" + providerReference
	var env flwEnvelope
	if err := doJSON(ctx, f.client, http.MethodGet, url, f.cfg.Secret, nil, &env); err != nil {
		return nil, err
	}
	var data flwVerifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, ErrUpstream
	}

	res := &VerificationResult{
		ProviderReference: providerReference,
		Status:            flwStatus(data.Status),
		RawStatus:         data.Status,
		Amount:            data.Amount,
		Currency:          data.Currency,
	}
	if t, err := time.Parse(time.RFC3339, data.CreatedDate); err == nil {
		res.PaidAt = t
	}
	return res, nil
}

func flwStatus(s string) Status {
	switch s {
	case "successful":
		return StatusSuccess
	case "failed":
		return StatusFailed
	case "cancelled", "voided":
		return StatusCancelled
	default:
		return StatusPending
	}
}

func (f *Flutterwave) CheckSignature(payload []byte, signature string, timestamp time.Time) bool {
	return checkHMAC(sha256.New, f.cfg.Secret, payload, signature, timestamp)
}

type flwWebhook struct {
	Event string `json:"event"`
	ID    int64  `json:"id"`
	Data  struct {
		ID       int64           `json:"id"`
		TxRef    string          `json:"tx_ref"`
		Status   string          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	} `json:"data"`
}

func (f *Flutterwave) ParseWebhook(payload []byte) WebhookResult {
	var wh flwWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return WebhookResult{Reason: "malformed payload"}
	}
	if wh.Data.TxRef == "" {
		return WebhookResult{Reason: "missing reference"}
	}
	if wh.Data.Status == "" {
		return WebhookResult{Reason: "missing status"}
	}
	if wh.Data.Amount.Sign() <= 0 {
		return WebhookResult{Reason: "missing or invalid amount"}
	}

	eventID := wh.ID
	if eventID == 0 {
		eventID = wh.Data.ID
	}
	var id string
	if eventID != 0 {
		id = strconv.FormatInt(eventID, 10)
	}
	return WebhookResult{
		Valid:     true,
		EventID:   id,
		Reference: wh.Data.TxRef,
		Status:    flwStatus(wh.Data.Status),
		RawStatus: wh.Data.Status,
		Amount:    wh.Data.Amount,
		Currency:  wh.Data.Currency,
	}
}

func (f *Flutterwave) Ping(ctx context.Context) error {
	return doJSON(ctx, f.client, http.MethodGet, f.cfg.BaseURL+"/banks/NG", f.cfg.Secret, nil, nil)
}
