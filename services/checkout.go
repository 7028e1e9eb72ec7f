package services

import (
	"context"
	"errors"
	"time"

	"github.com/Kariqs/galio-api/archive"
	"github.com/Kariqs/galio-api/events"
	"github.com/Kariqs/galio-api/models"
	"github.com/Kariqs/galio-api/mpesa"
	"github.com/Kariqs/galio-api/utils"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultPollWindow = 5 * time.Minute
	DefaultOrphanAge  = 15 * time.Minute
)

// PaymentProvider is the push-payment API. *mpesa.Client implements it.
type PaymentProvider interface {
	STKPush(ctx context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
}

type CheckoutService struct {
	db       *gorm.DB
	provider PaymentProvider
	cache    *StatusCache
	events   events.Publisher
	archive  archive.Archiver

	taxRate    decimal.Decimal
	pollWindow time.Duration
	orphanAge  time.Duration
	now        func() time.Time
}

type Option func(*CheckoutService)

func WithTaxRate(rate decimal.Decimal) Option {
	return func(s *CheckoutService) { s.taxRate = rate }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *CheckoutService) { s.events = p }
}

func WithArchiver(a archive.Archiver) Option {
	return func(s *CheckoutService) { s.archive = a }
}

func WithPollWindow(d time.Duration) Option {
	return func(s *CheckoutService) { s.pollWindow = d }
}

func WithOrphanAge(d time.Duration) Option {
	return func(s *CheckoutService) { s.orphanAge = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *CheckoutService) { s.now = now }
}

func NewCheckoutService(db *gorm.DB, provider PaymentProvider, cache *StatusCache, opts ...Option) *CheckoutService {
	s := &CheckoutService{
		db:         db,
		provider:   provider,
		cache:      cache,
		events:     events.NoopPublisher{},
		archive:    archive.Noop{},
		taxRate:    decimal.Zero,
		pollWindow: DefaultPollWindow,
		orphanAge:  DefaultOrphanAge,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CheckoutRequest struct {
	DeliveryAreaID  uint
	ShippingAddress string
	BillingAddress  string
	CouponCode      string
	Phone           string
}

type CheckoutResult struct {
	Order           *models.Order
	Payment         *models.Payment
	CustomerMessage string
}

// Checkout turns the owner's cart into an order and starts the STK push. When the
// push cannot be started the order is rolled back and its stock restored.
func (s *CheckoutService) Checkout(ctx context.Context, owner Owner, req CheckoutRequest) (*CheckoutResult, error) {
	phone, err := utils.NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	billing := req.BillingAddress
	if billing == "" {
		billing = req.ShippingAddress
	}

	order, err := s.BuildOrder(ctx, BuildOrderInput{
		Owner:           owner,
		DeliveryAreaID:  req.DeliveryAreaID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		CouponCode:      req.CouponCode,
		PaymentMethod:   models.PaymentMethodMpesa,
	})
	if err != nil {
		return nil, err
	}

	payment, message, err := s.InitiatePayment(ctx, order, phone)
	if err != nil {
		if errors.Is(err, ErrPaymentInitiation) {
			// The rollback must finish even if the client has gone away.
			s.discardOrder(context.WithoutCancel(ctx), order.ID)
		}
		return nil, err
	}

	return &CheckoutResult{Order: order, Payment: payment, CustomerMessage: message}, nil
}

// discardOrder is the compensation for a failed payment initiation: in one
// transaction the order disappears, stock and coupon usage are given back and the
// lines return to the owner's cart. On failure the order stays pending without a
// payment and the orphan reaper cancels it later.
func (s *CheckoutService) discardOrder(ctx context.Context, orderID uint) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("OrderItems").First(&order, orderID).Error; err != nil {
			return err
		}
		if err := restoreStock(tx, order.OrderItems); err != nil {
			return err
		}
		if err := releaseCoupon(tx, order.CouponID); err != nil {
			return err
		}
		if err := restoreCart(tx, ownerOf(&order), order.OrderItems); err != nil {
			return err
		}
		if err := tx.Unscoped().Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Order{}, order.ID).Error
	})
	if err != nil {
		log.Error().Err(err).Uint("order_id", orderID).Msg("checkout: failed to roll back order after payment initiation failure")
		return
	}
	log.Info().Uint("order_id", orderID).Msg("checkout: order rolled back after payment initiation failure")
}

func ownerOf(order *models.Order) Owner {
	return Owner{UserID: order.UserID, SessionKey: order.SessionKey}
}
