package services

import (
	"time"

	"github.com/Kariqs/galio-api/models"
	"github.com/Kariqs/galio-api/mpesa"
	"github.com/jellydator/ttlcache/v3"
)

const DefaultStatusTTL = 5 * time.Minute

// StatusRecord is the short-lived outcome of a callback, keyed by CheckoutRequestID.
type StatusRecord struct {
	Status      models.PaymentStatus
	Message     string
	OrderNumber string
	ResultCode  int
	RecordedAt  time.Time

	// Set only when the callback matched no payment, so it can be replayed once the
	// payment row is committed.
	Callback *mpesa.STKCallback
	Payload  []byte
}

type StatusCache struct {
	cache *ttlcache.Cache[string, StatusRecord]
}

func NewStatusCache(ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &StatusCache{
		cache: ttlcache.New[string, StatusRecord](
			ttlcache.WithTTL[string, StatusRecord](ttl),
			ttlcache.WithDisableTouchOnHit[string, StatusRecord](),
		),
	}
}

// Start runs the expiry loop until Stop is called.
func (c *StatusCache) Start() {
	go c.cache.Start()
}

func (c *StatusCache) Stop() {
	c.cache.Stop()
}

func (c *StatusCache) Set(checkoutRequestID string, record StatusRecord) {
	c.cache.Set(checkoutRequestID, record, ttlcache.DefaultTTL)
}

func (c *StatusCache) Get(checkoutRequestID string) (StatusRecord, bool) {
	item := c.cache.Get(checkoutRequestID)
	if item == nil || item.IsExpired() {
		return StatusRecord{}, false
	}
	return item.Value(), true
}
