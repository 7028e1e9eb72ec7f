package services

import (
	"context"
	"testing"
	"time"

	"github.com/Kariqs/galio-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("pending while waiting for the callback", func(t *testing.T) {
		f := newFixture(t)
		f.checkout(t, "ws_CO_WAIT")

		status, err := f.svc.PaymentStatus(ctx, "ws_CO_WAIT")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPending, status.Status)
		assert.Empty(t, status.RedirectURL)
		assert.False(t, status.Abandoned)
	})

	t.Run("success redirects to the confirmation page", func(t *testing.T) {
		f := newFixture(t)
		result := f.checkout(t, "ws_CO_PAID")
		f.svc.HandleCallback(ctx, successCallback("ws_CO_PAID", 250))

		status, err := f.svc.PaymentStatus(ctx, "ws_CO_PAID")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentSuccess, status.Status)
		assert.Equal(t, result.Order.Number(), status.OrderNumber)
		assert.Equal(t, "/order-confirmation/"+result.Order.Number()+"/", status.RedirectURL)
	})

	t.Run("failure redirects back to checkout", func(t *testing.T) {
		f := newFixture(t)
		f.checkout(t, "ws_CO_DECLINED")
		f.svc.HandleCallback(ctx, failureCallback("ws_CO_DECLINED"))

		status, err := f.svc.PaymentStatus(ctx, "ws_CO_DECLINED")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentFailed, status.Status)
		assert.Equal(t, "/checkout/", status.RedirectURL)
		assert.Contains(t, status.Message, "Request cancelled by user")
	})

	t.Run("payment row wins over the cache", func(t *testing.T) {
		f := newFixture(t)
		f.checkout(t, "ws_CO_ROW")
		f.cache.Set("ws_CO_ROW", StatusRecord{Status: models.PaymentFailed, Message: "stale"})

		status, err := f.svc.PaymentStatus(ctx, "ws_CO_ROW")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPending, status.Status)
	})

	t.Run("cache used when no payment row exists", func(t *testing.T) {
		f := newFixture(t)
		f.cache.Set("ws_CO_CACHED", StatusRecord{Status: models.PaymentSuccess, Message: "Payment completed successfully", OrderNumber: "ORD-20260101-0007"})

		status, err := f.svc.PaymentStatus(ctx, "ws_CO_CACHED")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentSuccess, status.Status)
		assert.Equal(t, "/order-confirmation/ORD-20260101-0007/", status.RedirectURL)
	})

	t.Run("unknown id is pending", func(t *testing.T) {
		f := newFixture(t)

		status, err := f.svc.PaymentStatus(ctx, "ws_CO_NOBODY")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPending, status.Status)
		assert.False(t, status.Abandoned)
	})

	t.Run("pending past the poll window is abandoned", func(t *testing.T) {
		later := time.Now().Add(10 * time.Minute)
		f := newFixture(t, WithClock(func() time.Time { return later }))
		f.checkout(t, "ws_CO_SLOW")

		status, err := f.svc.PaymentStatus(ctx, "ws_CO_SLOW")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPending, status.Status)
		assert.True(t, status.Abandoned)
		assert.Empty(t, status.RedirectURL)
	})
}

func TestStatusCacheExpires(t *testing.T) {
	cache := NewStatusCache(20 * time.Millisecond)
	cache.Set("ws_CO_TTL", StatusRecord{Status: models.PaymentSuccess})

	_, ok := cache.Get("ws_CO_TTL")
	assert.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = cache.Get("ws_CO_TTL")
	assert.False(t, ok)
}
