package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"paygate/internal/data/entity"
	"paygate/internal/dto/response"
	"paygate/internal/rate"
	"paygate/internal/usecase"
	"paygate/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type fakeOTPService struct {
	resendErr   error
	resendCalls []string
}

func (f *fakeOTPService) Issue(_ context.Context, in usecase.IssueOTPInput) (*entity.OTP, error) {
	return &entity.OTP{TransactionID: in.TransactionID, Status: entity.OTPStatusEmailPending}, nil
}

func (f *fakeOTPService) Resend(_ context.Context, txID, userID string) error {
	f.resendCalls = append(f.resendCalls, txID+"/"+userID)
	return f.resendErr
}

func (f *fakeOTPService) Verify(_ context.Context, _, code string) (bool, error) {
	return code == "123456", nil
}

func (f *fakeOTPService) ApplyDeliveryResult(context.Context, string, bool, string) error {
	return nil
}

type fakePaymentService struct {
	callbackValues url.Values
	statusErr      error
}

func (f *fakePaymentService) Create(_ context.Context, userID string, in usecase.CreatePaymentInput) (*entity.PaymentRequest, error) {
	return &entity.PaymentRequest{
		TransactionID: in.TransactionID,
		UserID:        userID,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		ClientIP:      &in.ClientIP,
		Status:        entity.PaymentStatusPending,
	}, nil
}

func (f *fakePaymentService) OnCreated(context.Context, string) error { return nil }

func (f *fakePaymentService) HandleCallback(_ context.Context, values url.Values) response.CallbackResponse {
	f.callbackValues = values
	return response.CallbackResponse{RspCode: "97", Message: "Checksum failed"}
}

func (f *fakePaymentService) Status(_ context.Context, callerID, txID string) (*response.PaymentStatusResponse, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	u := "https://pay.example/" + txID
	return &response.PaymentStatusResponse{Success: true, Status: entity.PaymentStatusPendingPayment, PaymentURL: &u}, nil
}

func (f *fakePaymentService) ReturnStatus(context.Context, url.Values) (*response.PaymentReturnResponse, error) {
	return nil, usecase.ErrChecksum
}

type fakePasswordService struct{}

func (fakePasswordService) RequestReset(context.Context, string) error { return nil }

func (fakePasswordService) ConfirmReset(_ context.Context, token, _ string) error {
	return usecase.ErrTokenExpired
}

func newTestRouter(otp *fakeOTPService, pay *fakePaymentService) *chi.Mux {
	h := &Handler{
		OTP:      NewOTPHandler(otp, zap.NewNop()),
		Payment:  NewPaymentHandler(pay, zap.NewNop()),
		Password: NewPasswordHandler(fakePasswordService{}, zap.NewNop()),
		RPC:      NewRPCHandler(otp, pay, zap.NewNop()),
		Health: NewHealthHandler([]HealthCheck{
			{Name: "postgres", Ping: func(context.Context) error { return nil }},
		}, zap.NewNop()),
	}

	r := chi.NewRouter()
	// Stand-in for the bearer middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if u := req.Header.Get("X-Test-User"); u != "" {
				req = req.WithContext(utils.SetUserContext(req.Context(), u, "a@example.com"))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/health", h.Health.Live)
	r.Get("/health/ready", h.Health.Ready)
	r.Post("/api/otp", h.OTP.Issue)
	r.Post("/api/otp/verify", h.OTP.Verify)
	r.Get("/api/payments/vnpay/callback", h.Payment.Callback)
	r.Post("/api/payments/vnpay/callback", h.Payment.Callback)
	r.Get("/api/payments/vnpay/return", h.Payment.Return)
	r.Post("/api/payments", h.Payment.Create)
	r.Get("/api/payments/{transactionId}", h.Payment.Status)
	r.Post("/api/password/reset", h.Password.Reset)
	r.Post("/api/rpc/resend-otp", h.RPC.ResendOTP)
	r.Post("/api/rpc/check-payment-status", h.RPC.CheckPaymentStatus)
	return r
}

func do(r http.Handler, method, target, user, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCallbackAlwaysOK(t *testing.T) {
	pay := &fakePaymentService{}
	r := newTestRouter(&fakeOTPService{}, pay)

	rec := do(r, http.MethodGet, "/api/payments/vnpay/callback?vnp_TxnRef=T1&vnp_SecureHash=abc", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body response.CallbackResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.RspCode != "97" || body.Message != "Checksum failed" {
		t.Fatalf("body = %+v", body)
	}
	if pay.callbackValues.Get("vnp_TxnRef") != "T1" {
		t.Fatalf("values = %v", pay.callbackValues)
	}

	// Form-encoded POST
	req := httptest.NewRequest(http.MethodPost, "/api/payments/vnpay/callback", strings.NewReader("vnp_TxnRef=T2"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || pay.callbackValues.Get("vnp_TxnRef") != "T2" {
		t.Fatalf("POST callback: %d %v", rec.Code, pay.callbackValues)
	}
}

func TestReturnChecksumFailure(t *testing.T) {
	r := newTestRouter(&fakeOTPService{}, &fakePaymentService{})
	rec := do(r, http.MethodGet, "/api/payments/vnpay/return?vnp_TxnRef=T1", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRPCErrors(t *testing.T) {
	otp := &fakeOTPService{}
	pay := &fakePaymentService{}
	r := newTestRouter(otp, pay)

	tests := []struct {
		name     string
		path     string
		user     string
		body     string
		setup    func()
		wantCode int
		wantRPC  string
	}{
		{"unauthenticated", "/api/rpc/resend-otp", "", `{"data":{"transactionId":"T1"}}`, nil, 401, "UNAUTHENTICATED"},
		{"missing id", "/api/rpc/resend-otp", "U1", `{"data":{}}`, nil, 400, "INVALID_ARGUMENT"},
		{"bad body", "/api/rpc/check-payment-status", "U1", `{`, nil, 400, "INVALID_ARGUMENT"},
		{"not found", "/api/rpc/resend-otp", "U1", `{"data":{"transactionId":"T1"}}`,
			func() { otp.resendErr = usecase.ErrNotFound }, 404, "NOT_FOUND"},
		{"not owner", "/api/rpc/resend-otp", "U1", `{"data":{"transactionId":"T1"}}`,
			func() { otp.resendErr = usecase.ErrUnauthorized }, 403, "PERMISSION_DENIED"},
		{"used", "/api/rpc/resend-otp", "U1", `{"data":{"transactionId":"T1"}}`,
			func() { otp.resendErr = usecase.ErrAlreadyUsed }, 400, "FAILED_PRECONDITION"},
		{"store", "/api/rpc/check-payment-status", "U1", `{"data":{"transactionId":"T1"}}`,
			func() { pay.statusErr = errors.New("db down") }, 500, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			otp.resendErr, pay.statusErr = nil, nil
			if tt.setup != nil {
				tt.setup()
			}

			rec := do(r, http.MethodPost, tt.path, tt.user, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body response.CallableError
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Error.Status != tt.wantRPC {
				t.Fatalf("rpc status = %s, want %s", body.Error.Status, tt.wantRPC)
			}
		})
	}
}

func TestRPCSuccess(t *testing.T) {
	otp := &fakeOTPService{}
	r := newTestRouter(otp, &fakePaymentService{})

	rec := do(r, http.MethodPost, "/api/rpc/resend-otp", "U1", `{"data":{"transactionId":"T1"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Result response.ResendOTPResponse `json:"result"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Result.Success || body.Result.Message != "OTP email will be resent" {
		t.Fatalf("result = %+v", body.Result)
	}
	if len(otp.resendCalls) != 1 || otp.resendCalls[0] != "T1/U1" {
		t.Fatalf("resend calls = %v", otp.resendCalls)
	}

	rec = do(r, http.MethodPost, "/api/rpc/check-payment-status", "U1", `{"data":{"transactionId":"T1"}}`)
	var status struct {
		Result map[string]any `json:"result"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Result["status"] != "pending_payment" || status.Result["paymentUrl"] != "https://pay.example/T1" {
		t.Fatalf("result = %v", status.Result)
	}
	if _, ok := status.Result["paymentReference"]; !ok {
		t.Fatal("paymentReference must always be present")
	}
}

func TestRateLimitedResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	handleServiceError(rec, zap.NewNop(), &rate.LimitError{Err: rate.ErrLimited, RetryAfter: 90500 * time.Millisecond}, "issue OTP")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "91" {
		t.Fatalf("Retry-After = %q, want 91", got)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{usecase.ErrValidation, http.StatusBadRequest},
		{usecase.ErrUnauthorized, http.StatusForbidden},
		{usecase.ErrNotFound, http.StatusNotFound},
		{usecase.ErrDuplicateActive, http.StatusConflict},
		{usecase.ErrChecksum, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handleServiceError(rec, zap.NewNop(), tt.err, "test")
		if rec.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestRESTRoutes(t *testing.T) {
	r := newTestRouter(&fakeOTPService{}, &fakePaymentService{})

	if rec := do(r, http.MethodPost, "/api/otp", "", `{"transaction_id":"T1"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous issue = %d", rec.Code)
	}
	// email comes from the token
	if rec := do(r, http.MethodPost, "/api/otp", "U1", `{"transaction_id":"T1"}`); rec.Code != http.StatusCreated {
		t.Errorf("issue = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(r, http.MethodPost, "/api/otp/verify", "U1", `{"transaction_id":"T1","otp":"654321"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("wrong code = %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/otp/verify", "U1", `{"transaction_id":"T1","otp":"123456"}`); rec.Code != http.StatusOK {
		t.Errorf("verify = %d", rec.Code)
	}
	if rec := do(r, http.MethodPost, "/api/payments", "U1", `{"transaction_id":"T1","amount":50000,"payment_method":"vnpay"}`); rec.Code != http.StatusCreated {
		t.Errorf("create payment = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(r, http.MethodGet, "/api/payments/T1", "U1", ""); rec.Code != http.StatusOK {
		t.Errorf("payment status = %d", rec.Code)
	}
	token := strings.Repeat("ab", 32)
	if rec := do(r, http.MethodPost, "/api/password/reset", "", `{"token":"`+token+`","new_password":"n3w-passw0rd"}`); rec.Code != http.StatusConflict {
		t.Errorf("expired reset = %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Errorf("ready = %d", rec.Code)
	}
}
