package notificator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"sync"
	"testing"

	"github.com/core-coin/go-core/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/adsponsor/internal/metrics"
	"github.com/core-coin/adsponsor/internal/models"
	"github.com/core-coin/adsponsor/pkg/logger"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []string
	err      error
	panics   bool
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(_ context.Context, message string) error {
	if f.panics {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return f.err
}

func (f *fakeSender) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func depositEvent() *models.Event {
	e := models.NewEvent(models.EventDeposited, common.BytesToAddress([]byte{0xad}), 1)
	e.Amount = 1_000_000
	e.TotalFunds = 1_000_000
	return e
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNotifyDeliversToSenders(t *testing.T) {
	first, second := &fakeSender{}, &fakeSender{err: errors.New("unreachable")}
	n, err := NewNotificator(logger.NewNop(), nil, first, second)
	require.NoError(t, err)

	event := depositEvent()
	n.Notify(event)
	n.Stop()

	assert.Equal(t, []string{event.String()}, first.received())
	assert.Equal(t, []string{event.String()}, second.received())
}

func TestNotifyUpdatesMetrics(t *testing.T) {
	m := metrics.New()
	n, err := NewNotificator(logger.NewNop(), m)
	require.NoError(t, err)

	n.Notify(depositEvent())
	n.Stop()

	body := scrape(t, m)
	assert.Contains(t, body, `adsponsor_events_total{type="deposited"} 1`)
	assert.Contains(t, body, `adsponsor_pool_total_funds 1e+06`)
}

func TestPanickingSenderIsContained(t *testing.T) {
	healthy := &fakeSender{}
	n, err := NewNotificator(logger.NewNop(), nil, &fakeSender{panics: true}, healthy)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		n.Notify(depositEvent())
		n.Stop()
	})
	assert.Len(t, healthy.received(), 1)
}

func TestEmailNotificator(t *testing.T) {
	e := NewEmailNotificator(logger.NewNop(), "smtp.example.com", 587, "user", "secret", "pool@example.com", "ops@example.com")

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	e.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, e.Send(context.Background(), "hello"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: "+emailSubject+"\r\n")
	assert.Contains(t, gotMsg, "\r\n\r\nhello")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Send(ctx, "late"), context.Canceled)
}
