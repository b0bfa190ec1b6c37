package provider

import (
	"context"
	"crypto/sha512"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const NamePaystack = "paystack"

var koboPerNaira = decimal.NewFromInt(100)

type PaystackConfig struct {
	Secret  string
	BaseURL string
	Timeout time.Duration
}

// Paystack charges in minor units (kobo) and signs webhooks with
// HMAC-SHA512.
type Paystack struct {
	cfg    PaystackConfig
	client *http.Client
	now    func() time.Time
}

func NewPaystack(cfg PaystackConfig) *Paystack {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Paystack{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *Paystack) Name() string { return NamePaystack }

type paystackInitReq struct {
	Email     string            `json:"email"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Reference string            `json:"reference"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

func (p *Paystack) Initialize(ctx context.Context, req InitializeRequest) (*GatewayResponse, error) {
	body := paystackInitReq{
		Email:     req.Email,
		Amount:    req.Amount.Mul(koboPerNaira).IntPart(),
		Currency:  req.Currency,
		Reference: req.Reference,
		Metadata:  req.Metadata,
	}

	var env paystackEnvelope
	if err := doJSON(ctx, p.client, http.MethodPost, p.cfg.BaseURL+"/transaction/initialize", p.cfg.Secret, body, &env); err != nil {
		return nil, err
	}
	if !env.Status {
		return nil, ErrGatewayRejected
	}
	var data paystackInitData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, ErrUpstream
	}

	return &GatewayResponse{
		ProviderReference: data.Reference,
		PaymentURL:        data.AuthorizationURL,
		RedirectURL:       data.AuthorizationURL,
		AccessCode:        data.AccessCode,
		ExpiresAt:         p.now().Add(MaxSessionTTL),
		Metadata:          map[string]string{"access_code": data.AccessCode},
	}, nil
}

type paystackVerifyData struct {
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	PaidAt   string `json:"paid_at"`
}

func (p *Paystack) Verify(ctx context.Context, providerReference string) (*VerificationResult, error) {
	var env paystackEnvelope
	if err := doJSON(ctx, p.client, http.MethodGet, p.cfg.BaseURL+"/transaction/verify/"+providerReference, p.cfg.Secret, nil, &env); err != nil {
		return nil, err
	}
	var data paystackVerifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, ErrUpstream
	}

	res := &VerificationResult{
		ProviderReference: providerReference,
		Status:            paystackStatus(data.Status),
		RawStatus:         data.Status,
		Amount:            decimal.NewFromInt(data.Amount).Div(koboPerNaira),
		Currency:          data.Currency,
	}
	if t, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
		res.PaidAt = t
	}
	return res, nil
}

func paystackStatus(s string) Status {
	switch s {
	case "success":
		return StatusSuccess
	case "failed":
		return StatusFailed
	case "abandoned":
		return StatusCancelled
	case "ongoing", "processing", "send_otp", "pay_offline":
		return StatusProcessing
	default:
		// Unknown gateway statuses stay uncertain rather than resolving
		// a payment either way.
		return StatusPending
	}
}

func (p *Paystack) CheckSignature(payload []byte, signature string, timestamp time.Time) bool {
	return checkHMAC(sha512.New, p.cfg.Secret, payload, signature, timestamp)
}

type paystackWebhook struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64       `json:"id"`
		Reference string      `json:"reference"`
		Status    string      `json:"status"`
		Amount    json.Number `json:"amount"`
		Currency  string      `json:"currency"`
	} `json:"data"`
}

func (p *Paystack) ParseWebhook(payload []byte) WebhookResult {
	var wh paystackWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return WebhookResult{Reason: "malformed payload"}
	}
	if wh.Data.Reference == "" {
		return WebhookResult{Reason: "missing reference"}
	}
	if wh.Data.Status == "" {
		return WebhookResult{Reason: "missing status"}
	}
	kobo, err := wh.Data.Amount.Int64()
	if err != nil || kobo <= 0 {
		return WebhookResult{Reason: "missing or invalid amount"}
	}

	var eventID string
	if wh.Data.ID != 0 {
		eventID = strconv.FormatInt(wh.Data.ID, 10)
	}
	return WebhookResult{
		Valid:     true,
		EventID:   eventID,
		Reference: wh.Data.Reference,
		Status:    paystackStatus(wh.Data.Status),
		RawStatus: wh.Data.Status,
		Amount:    decimal.NewFromInt(kobo).Div(koboPerNaira),
		Currency:  wh.Data.Currency,
	}
}

func (p *Paystack) Ping(ctx context.Context) error {
	return doJSON(ctx, p.client, http.MethodGet, p.cfg.BaseURL+"/bank", p.cfg.Secret, nil, nil)
}
