// Package vnpay builds signed VNPay payment URLs and checks signed callbacks.
package vnpay

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paygate/pkg/signer"

	"github.com/shopspring/decimal"
)

const (
	ParamVersion        = "vnp_Version"
	ParamCommand        = "vnp_Command"
	ParamTmnCode        = "vnp_TmnCode"
	ParamAmount         = "vnp_Amount"
	ParamCurrCode       = "vnp_CurrCode"
	ParamTxnRef         = "vnp_TxnRef"
	ParamOrderInfo      = "vnp_OrderInfo"
	ParamOrderType      = "vnp_OrderType"
	ParamLocale         = "vnp_Locale"
	ParamReturnURL      = "vnp_ReturnUrl"
	ParamIPAddr         = "vnp_IpAddr"
	ParamCreateDate     = "vnp_CreateDate"
	ParamExpireDate     = "vnp_ExpireDate"
	ParamResponseCode   = "vnp_ResponseCode"
	ParamTransactionNo  = "vnp_TransactionNo"
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"

	// GatewayName is stored on payment requests routed through this adapter.
	GatewayName     = "VNPay"
	// ResponseSuccess is the only response code treated as a completed payment.
	ResponseSuccess = "00"

	// DateLayout is the compact UTC timestamp format of vnp_CreateDate / vnp_ExpireDate.
	DateLayout = "20060102T150405"

	defaultLocale    = "vn"
	defaultOrderType = "other"
	defaultClientIP  = "127.0.0.1"
)

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrMissingOrder  = errors.New("order id is required")
)

type Config struct {
	TmnCode     string
	HashSecret  string
	PayURL      string
	ReturnURL   string
	Version     string
	Command     string
	CurrCode    string
	ExpireAfter time.Duration
}

// PaymentParams is one payment initiation.
type PaymentParams struct {
	Amount      decimal.Decimal
	OrderID     string
	Description string
	OrderType   string
	Locale      string
	ClientIP    string
}

// Client is safe for concurrent use; its configuration never changes after New.
type Client struct {
	cfg    Config
	signer *signer.Signer
	now    func() time.Time
}

func New(cfg Config) *Client {
	if cfg.Version == "" {
		cfg.Version = "2.1.0"
	}
	if cfg.Command == "" {
		cfg.Command = "pay"
	}
	if cfg.CurrCode == "" {
		cfg.CurrCode = "VND"
	}
	if cfg.ExpireAfter <= 0 {
		cfg.ExpireAfter = 15 * time.Minute
	}

	return &Client{
		cfg:    cfg,
		signer: signer.New(cfg.HashSecret, ParamSecureHash, ParamSecureHashType),
		now:    time.Now,
	}
}

// WithClock returns a copy of c that reads time from now.
func (c *Client) WithClock(now func() time.Time) *Client {
	cp := *c
	cp.now = now
	return &cp
}

// MinorUnits scales amount to the gateway's convention: amount*100, rounded half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// BuildPaymentURL returns the signed redirect URL for p. It has no side effects.
func (c *Client) BuildPaymentURL(p PaymentParams) (string, error) {
	if !p.Amount.IsPositive() {
		return "", ErrInvalidAmount
	}
	if strings.TrimSpace(p.OrderID) == "" {
		return "", ErrMissingOrder
	}
	if p.OrderType == "" {
		p.OrderType = defaultOrderType
	}
	if p.Locale == "" {
		p.Locale = defaultLocale
	}
	if p.ClientIP == "" {
		p.ClientIP = defaultClientIP
	}

	created := c.now().UTC()
	params := signer.Params{
		ParamVersion:    c.cfg.Version,
		ParamCommand:    c.cfg.Command,
		ParamTmnCode:    c.cfg.TmnCode,
		ParamCurrCode:   c.cfg.CurrCode,
		ParamTxnRef:     p.OrderID,
		ParamOrderInfo:  p.Description,
		ParamOrderType:  p.OrderType,
		ParamLocale:     p.Locale,
		ParamReturnURL:  c.cfg.ReturnURL,
		ParamIPAddr:     p.ClientIP,
		ParamCreateDate: created.Format(DateLayout),
		ParamExpireDate: created.Add(c.cfg.ExpireAfter).Format(DateLayout),
	}
	params.SetInt(ParamAmount, MinorUnits(p.Amount))

	query := signer.Canonicalize(params)
	return fmt.Sprintf("%s?%s&%s=%s", c.cfg.PayURL, query, ParamSecureHash, c.signer.Sign(params)), nil
}

// VerifyCallback reports whether the callback parameters carry a valid signature.
func (c *Client) VerifyCallback(values url.Values) bool {
	params := Flatten(values)
	claimed := params[ParamSecureHash]
	delete(params, ParamSecureHash)
	delete(params, ParamSecureHashType)
	return c.signer.Verify(params, claimed)
}

// Sign is exposed so callers can produce callback fixtures with the merchant secret.
func (c *Client) Sign(params signer.Params) string {
	return c.signer.Sign(params)
}

// Callback is the subset of callback parameters the orchestrator acts on.
type Callback struct {
	TxnRef        string
	ResponseCode  string
	TransactionNo string
	Amount        int64
	HasAmount     bool
	Params        map[string]string
}

// ParseCallback extracts the fields used for finalization. Params keeps the
// full set, signature included, for the audit trail.
func ParseCallback(values url.Values) Callback {
	params := Flatten(values)
	cb := Callback{
		TxnRef:        params[ParamTxnRef],
		ResponseCode:  params[ParamResponseCode],
		TransactionNo: params[ParamTransactionNo],
		Params:        params,
	}
	if raw, ok := params[ParamAmount]; ok {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cb.Amount = n
			cb.HasAmount = true
		}
	}
	return cb
}

// IsSuccess maps a gateway response code onto success or failure.
func IsSuccess(code string) bool {
	return code == ResponseSuccess
}

// Flatten keeps the first value of every key.
func Flatten(values url.Values) signer.Params {
	params := make(signer.Params, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}
