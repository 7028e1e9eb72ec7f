package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kariqs/galio-api/events"
	"github.com/Kariqs/galio-api/models"
	"github.com/Kariqs/galio-api/mpesa"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*mpesa.STKPushResponse)
	return resp, args.Error(1)
}

func accepted(checkoutRequestID string) *mpesa.STKPushResponse {
	return &mpesa.STKPushResponse{
		MerchantRequestID:   "29115-34620561-1",
		CheckoutRequestID:   checkoutRequestID,
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
		Raw:                 []byte(`{"CheckoutRequestID":"` + checkoutRequestID + `","ResponseCode":"0"}`),
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Events() []events.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.OrderEvent(nil), p.events...)
}

type fixture struct {
	db        *gorm.DB
	svc       *CheckoutService
	carts     *CartService
	provider  *mockProvider
	cache     *StatusCache
	publisher *recordingPublisher
	product   models.Product
	area      models.DeliveryArea
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	db := newTestDB(t)
	f := &fixture{
		db:        db,
		provider:  &mockProvider{},
		cache:     NewStatusCache(time.Minute),
		publisher: &recordingPublisher{},
	}
	opts = append([]Option{WithPublisher(f.publisher)}, opts...)
	f.svc = NewCheckoutService(db, f.provider, f.cache, opts...)
	f.carts = NewCartService(db)

	f.product = models.Product{
		Name:           "Kiondo Basket",
		SKU:            "KB-001",
		Price:          decimal.NewFromInt(100),
		StockQuantity:  10,
		TrackInventory: true,
		Status:         models.ProductActive,
	}
	require.NoError(t, db.Create(&f.product).Error)

	county := models.County{Name: "Nairobi", Code: "047", IsActive: true}
	require.NoError(t, db.Create(&county).Error)
	f.area = models.DeliveryArea{
		Name:         "Westlands",
		CountyID:     county.ID,
		ShippingFee:  decimal.NewFromInt(50),
		DeliveryDays: 1,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&f.area).Error)
	return f
}

func sessionOwner() Owner {
	return Owner{SessionKey: uuid.NewString()}
}

func (f *fixture) fillCart(t *testing.T, owner Owner, productID uint, quantity int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), owner, productID, nil, quantity)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, productID uint) int {
	t.Helper()
	var product models.Product
	require.NoError(t, f.db.First(&product, productID).Error)
	return product.StockQuantity
}

func (f *fixture) reloadOrder(t *testing.T, id uint) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.db.First(&order, id).Error)
	return order
}

func (f *fixture) paymentFor(t *testing.T, checkoutRequestID string) models.Payment {
	t.Helper()
	var payment models.Payment
	require.NoError(t, f.db.Where("checkout_request_id = ?", checkoutRequestID).First(&payment).Error)
	return payment
}

// checkout places a 2 x 100 order to Westlands and returns it with its payment.
func (f *fixture) checkout(t *testing.T, checkoutRequestID string) *CheckoutResult {
	t.Helper()

	owner := sessionOwner()
	f.fillCart(t, owner, f.product.ID, 2)
	f.provider.On("STKPush", mock.Anything, mock.Anything).Return(accepted(checkoutRequestID), nil).Once()

	result, err := f.svc.Checkout(context.Background(), owner, CheckoutRequest{
		DeliveryAreaID:  f.area.ID,
		ShippingAddress: "Sarit Centre, Westlands",
		Phone:           "0712345678",
	})
	require.NoError(t, err)
	return result
}

// failPaymentInserts makes every payment INSERT fail until the returned func is called.
func (f *fixture) failPaymentInserts(t *testing.T) func() {
	t.Helper()

	var failing atomic.Bool
	failing.Store(true)
	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_payment_inserts", func(tx *gorm.DB) {
		if failing.Load() && tx.Statement.Table == "payments" {
			tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)
	return func() { failing.Store(false) }
}

// checkoutUnrecorded places a 2 x 100 order whose push the provider accepts but whose
// payment row cannot be written.
func (f *fixture) checkoutUnrecorded(t *testing.T, checkoutRequestID string) models.Order {
	t.Helper()

	restore := f.failPaymentInserts(t)
	defer restore()

	owner := sessionOwner()
	f.fillCart(t, owner, f.product.ID, 2)
	f.provider.On("STKPush", mock.Anything, mock.Anything).Return(accepted(checkoutRequestID), nil).Once()

	_, err := f.svc.Checkout(context.Background(), owner, CheckoutRequest{
		DeliveryAreaID:  f.area.ID,
		ShippingAddress: "Sarit Centre, Westlands",
		Phone:           "0712345678",
	})
	require.ErrorIs(t, err, ErrPaymentNotRecorded)

	var order models.Order
	require.NoError(t, f.db.Where("awaiting_checkout_request_id = ?", checkoutRequestID).First(&order).Error)
	return order
}

func parseCallback(t *testing.T, payload []byte) mpesa.STKCallback {
	t.Helper()
	var callback mpesa.Callback
	require.NoError(t, json.Unmarshal(payload, &callback))
	return callback.Body.STKCallback
}

func successCallback(checkoutRequestID string, amount int) []byte {
	return []byte(fmt.Sprintf(`{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": %q,
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": %d},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "Balance"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`, checkoutRequestID, amount))
}

func failureCallback(checkoutRequestID string) []byte {
	return []byte(fmt.Sprintf(`{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": %q,
      "ResultCode": 1032,
      "ResultDesc": "Request cancelled by user"
    }
  }
}`, checkoutRequestID))
}
