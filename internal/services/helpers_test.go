package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mutaengine_back_end/internal/cache"
	"mutaengine_back_end/internal/config"
	"mutaengine_back_end/internal/database"
	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/payment"
	"mutaengine_back_end/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQL(config.Database{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, mr
}

func newTestCartStore(t *testing.T) *cache.CartStore {
	t.Helper()
	rdb, _ := newTestRedis(t)
	return cache.NewCartStore(rdb)
}

func testProduct(id, price string) models.Product {
	return models.Product{ID: id, Title: "Product " + id, Price: decimal.RequireFromString(price)}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

type fakeProvider struct {
	mu        sync.Mutex
	createErr error
	created   []payment.CheckoutRequest
	expired   []string
	event     *payment.Event
	parseErr  error
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created = append(p.created, req)
	id := fmt.Sprintf("cs_test_%d", len(p.created))
	return &payment.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (p *fakeProvider) ExpireCheckoutSession(_ context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = append(p.expired, sessionID)
	return nil
}

func (p *fakeProvider) ParseWebhook(_ []byte, _ string) (*payment.Event, error) {
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	return p.event, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []utils.Email
	err  error
}

func (m *fakeMailer) Send(_ context.Context, email utils.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

type fakeRenderer struct {
	err error
}

func (r fakeRenderer) RenderPDF(_ context.Context, html string) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.4 " + fmt.Sprint(len(html))), nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeStore) PresignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return "", errors.New("no such object")
	}
	return fmt.Sprintf("https://minio.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *fakeAudit) Record(_ context.Context, e models.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *fakeAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeWaker struct {
	mu sync.Mutex
	n  int
}

func (w *fakeWaker) Wake() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.n++
}

func (w *fakeWaker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

func appMessage(err error) string {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}
