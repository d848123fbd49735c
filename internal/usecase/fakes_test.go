package usecase

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"paygate/internal/data/entity"
	"paygate/internal/data/repository"
	"paygate/internal/provider/vnpay"
	"paygate/internal/rate"
	"paygate/pkg/mailer"
	"paygate/pkg/utils"

	"go.uber.org/zap"
)

var errStoreDown = errors.New("store down")

// fakeOTPRepo mirrors the conditional updates of the SQL repository.
type fakeOTPRepo struct {
	mu   sync.Mutex
	rows map[string]entity.OTP
}

func (f *fakeOTPRepo) Upsert(_ context.Context, otp *entity.OTP, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.rows[otp.TransactionID]; ok && (cur.IsUsed || !cur.ExpiresAt.Before(now)) {
		return false, nil
	}
	f.rows[otp.TransactionID] = *otp
	return true, nil
}

func (f *fakeOTPRepo) FindByTransactionID(_ context.Context, txID string) (*entity.OTP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[txID]
	if !ok {
		return nil, nil
	}
	return &cur, nil
}

func (f *fakeOTPRepo) update(txID string, cond func(entity.OTP) bool, apply func(*entity.OTP)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[txID]
	if !ok || !cond(cur) {
		return false
	}
	apply(&cur)
	f.rows[txID] = cur
	return true
}

func (f *fakeOTPRepo) UpdateStatus(_ context.Context, txID string, from []entity.OTPStatus, status entity.OTPStatus, at time.Time) (bool, error) {
	return f.update(txID,
		func(o entity.OTP) bool { return !o.IsUsed && slices.Contains(from, o.Status) },
		func(o *entity.OTP) { o.Status, o.UpdatedAt = status, at }), nil
}

func (f *fakeOTPRepo) MarkVerified(_ context.Context, txID string, at time.Time) (bool, error) {
	return f.update(txID,
		func(o entity.OTP) bool { return !o.IsUsed },
		func(o *entity.OTP) {
			o.IsUsed = true
			o.Status = entity.OTPStatusVerified
			o.VerifiedAt = &at
		}), nil
}

func (f *fakeOTPRepo) MarkExpired(_ context.Context, txID string, at time.Time) (bool, error) {
	return f.update(txID,
		func(o entity.OTP) bool {
			return !o.IsUsed && o.Status != entity.OTPStatusExpired && o.ExpiresAt.Before(at)
		},
		func(o *entity.OTP) { o.Status = entity.OTPStatusExpired }), nil
}

func (f *fakeOTPRepo) ApplyDelivery(_ context.Context, txID string, sent bool, reason *string, at time.Time) (bool, error) {
	return f.update(txID,
		func(o entity.OTP) bool { return !o.IsUsed && o.Status != entity.OTPStatusExpired },
		func(o *entity.OTP) {
			o.Status = entity.OTPStatusFailed
			if sent {
				o.Status = entity.OTPStatusSent
				o.EmailSentAt = &at
			}
			o.LastError = reason
		}), nil
}

type fakeEmailRepo struct {
	mu      sync.Mutex
	rows    map[string]entity.EmailRequest
	order   []string
	failing bool
}

func (f *fakeEmailRepo) Create(_ context.Context, req *entity.EmailRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errStoreDown
	}
	if _, ok := f.rows[req.ID]; ok {
		return repository.ErrDuplicateKey
	}
	f.rows[req.ID] = *req
	f.order = append(f.order, req.ID)
	return nil
}

func (f *fakeEmailRepo) FindByID(_ context.Context, id string) (*entity.EmailRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &cur, nil
}

func (f *fakeEmailRepo) MarkSent(_ context.Context, id, messageID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[id]
	if !ok || cur.Status != entity.EmailStatusPending {
		return false, nil
	}
	cur.Status = entity.EmailStatusSent
	cur.MessageID = &messageID
	cur.SentAt = &at
	f.rows[id] = cur
	return true, nil
}

func (f *fakeEmailRepo) MarkFailed(_ context.Context, id, reason string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[id]
	if !ok || cur.Status != entity.EmailStatusPending {
		return false, nil
	}
	cur.Status = entity.EmailStatusFailed
	cur.LastError = &reason
	cur.FailedAt = &at
	f.rows[id] = cur
	return true, nil
}

func (f *fakeEmailRepo) ListPendingIDs(_ context.Context, createdBefore time.Time, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, id := range f.order {
		r := f.rows[id]
		if r.Status == entity.EmailStatusPending && r.CreatedAt.Before(createdBefore) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// last returns the most recently created request.
func (f *fakeEmailRepo) last() entity.EmailRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[f.order[len(f.order)-1]]
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	rows     map[string]entity.PaymentRequest
	moves    map[entity.PaymentStatus]int
	failFind bool
}

func (f *fakePaymentRepo) Create(_ context.Context, p *entity.PaymentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[p.TransactionID]; ok {
		return repository.ErrDuplicateKey
	}
	f.rows[p.TransactionID] = *p
	return nil
}

func (f *fakePaymentRepo) FindByTransactionID(_ context.Context, txID string) (*entity.PaymentRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFind {
		return nil, errStoreDown
	}
	cur, ok := f.rows[txID]
	if !ok {
		return nil, nil
	}
	return &cur, nil
}

func (f *fakePaymentRepo) Transition(_ context.Context, txID string, t entity.PaymentTransition) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[txID]
	if !ok || cur.Status != t.From {
		return false, nil
	}
	cur.Status = t.To
	cur.UpdatedAt = t.At
	f.moves[t.To]++
	at := t.At
	switch t.To {
	case entity.PaymentStatusProcessing:
		cur.ProcessingAt = &at
	case entity.PaymentStatusCompleted:
		cur.CompletedAt = &at
	case entity.PaymentStatusFailed:
		cur.FailedAt = &at
	}
	if t.PaymentURL != nil {
		cur.PaymentURL = t.PaymentURL
	}
	if t.PaymentGateway != nil {
		cur.PaymentGateway = t.PaymentGateway
	}
	if t.PaymentReference != nil {
		cur.PaymentReference = t.PaymentReference
	}
	if t.ResponseCode != nil {
		cur.ResponseCode = t.ResponseCode
	}
	if t.LastError != nil {
		cur.LastError = t.LastError
	}
	if t.GatewayParams != nil {
		cur.GatewayParams = t.GatewayParams
	}
	f.rows[txID] = cur
	return true, nil
}

func (f *fakePaymentRepo) ListPendingIDs(_ context.Context, createdBefore time.Time, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, r := range f.rows {
		if r.Status == entity.PaymentStatusPending && r.PaymentMethod == entity.PaymentMethodVNPay &&
			r.CreatedAt.Before(createdBefore) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeResetRepo struct {
	mu   sync.Mutex
	rows map[string]entity.PasswordResetToken
}

func (f *fakeResetRepo) Create(_ context.Context, t *entity.PasswordResetToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[t.Token] = *t
	return nil
}

func (f *fakeResetRepo) FindByToken(_ context.Context, token string) (*entity.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[token]
	if !ok {
		return nil, nil
	}
	return &cur, nil
}

func (f *fakeResetRepo) Consume(_ context.Context, token string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[token]
	if !ok || cur.IsUsed || !at.Before(cur.ExpiresAt) {
		return false, nil
	}
	cur.IsUsed = true
	cur.UsedAt = &at
	f.rows[token] = cur
	return true, nil
}

type fakeCredentialRepo struct {
	mu    sync.Mutex
	by    map[string]entity.Credential
	count int
}

func (f *fakeCredentialRepo) Upsert(_ context.Context, c *entity.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.by[c.Email] = *c
	f.count++
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return "msg-" + msg.To, nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// fakeLimitStore is an in-memory rate.Store whose keys expire on the test clock.
type fakeLimitStore struct {
	mu      sync.Mutex
	clock   *testClock
	values  map[string]int64
	expires map[string]time.Time
}

func newFakeLimitStore(clock *testClock) *fakeLimitStore {
	return &fakeLimitStore{clock: clock, values: map[string]int64{}, expires: map[string]time.Time{}}
}

func (f *fakeLimitStore) live(k string) bool {
	if exp, ok := f.expires[k]; ok && !f.clock.Now().Before(exp) {
		delete(f.values, k)
		delete(f.expires, k)
	}
	_, ok := f.values[k]
	return ok
}

func (f *fakeLimitStore) Set(_ context.Context, ns, key string, _ any, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[ns+":"+key] = 1
	f.expires[ns+":"+key] = f.clock.Now().Add(ttl)
	return nil
}

func (f *fakeLimitStore) Delete(_ context.Context, ns string, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.values, ns+":"+key)
		delete(f.expires, ns+":"+key)
	}
	return nil
}

func (f *fakeLimitStore) GetInt(_ context.Context, ns, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live(ns + ":" + key)
	return f.values[ns+":"+key], nil
}

func (f *fakeLimitStore) GetTTL(_ context.Context, ns, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := ns + ":" + key
	if !f.live(k) {
		return -2 * time.Nanosecond, nil
	}
	return f.expires[k].Sub(f.clock.Now()), nil
}

func (f *fakeLimitStore) IncrWithExpire(_ context.Context, ns, key string, window time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := ns + ":" + key
	if !f.live(k) {
		f.expires[k] = f.clock.Now().Add(window)
	}
	f.values[k]++
	return f.values[k], nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const testHashSecret = "SECRETKEY123"

type env struct {
	otps     *fakeOTPRepo
	emails   *fakeEmailRepo
	payments *fakePaymentRepo
	resets   *fakeResetRepo
	creds    *fakeCredentialRepo
	mail     *fakeMailer
	limits   *fakeLimitStore
	clock    *testClock
	gateway  *vnpay.Client
	config   *utils.Config
	svc      *Service
}

func newEnv() *env {
	e := &env{
		otps:     &fakeOTPRepo{rows: map[string]entity.OTP{}},
		emails:   &fakeEmailRepo{rows: map[string]entity.EmailRequest{}},
		payments: &fakePaymentRepo{rows: map[string]entity.PaymentRequest{}, moves: map[entity.PaymentStatus]int{}},
		resets:   &fakeResetRepo{rows: map[string]entity.PasswordResetToken{}},
		creds:    &fakeCredentialRepo{by: map[string]entity.Credential{}},
		mail:     &fakeMailer{},
		clock:    &testClock{now: time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC)},
		config: &utils.Config{
			OTP: utils.OTPConfig{
				ExpiryMinutes:     2,
				Length:            6,
				MaxSendsPerHour:   5,
				MaxFailedAttempts: 3,
				LockoutMinutes:    15,
			},
			VNPay: utils.VNPayConfig{
				Locale:    "vn",
				OrderType: "other",
			},
			PasswordReset: utils.PasswordResetConfig{
				TokenTTLMinutes: 60,
				LinkBaseURL:     "https://app.example.com/reset-password",
			},
		},
	}

	e.limits = newFakeLimitStore(e.clock)

	e.gateway = vnpay.New(vnpay.Config{
		TmnCode:    "TESTCODE",
		HashSecret: testHashSecret,
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "https://app.example.com/return",
	}).WithClock(e.clock.Now)

	repo := &repository.Repository{
		OTP:            e.otps,
		EmailRequest:   e.emails,
		PaymentRequest: e.payments,
		PasswordReset:  e.resets,
		Credential:     e.creds,
	}

	e.svc = NewService(repo, Infra{
		Gateway:     e.gateway,
		Mailer:      e.mail,
		SendLimiter: rate.NewSendLimiter(e.limits, e.config.OTP.MaxSendsPerHour, time.Hour, zap.NewNop()),
		Lockout: rate.NewLockout(e.limits, e.config.OTP.MaxFailedAttempts,
			time.Duration(e.config.OTP.LockoutMinutes)*time.Minute, zap.NewNop()),
		Clock: e.clock.Now,
	}, e.config, zap.NewNop())

	return e
}
