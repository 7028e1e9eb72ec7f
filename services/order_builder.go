package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kariqs/galio-api/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type BuildOrderInput struct {
	Owner           Owner
	DeliveryAreaID  uint
	ShippingAddress string
	BillingAddress  string
	CouponCode      string
	PaymentMethod   string
}

// BuildOrder converts the owner's cart into an order in one transaction: order row,
// order number, item snapshots, stock decrements, coupon usage and cart removal all
// commit together or not at all. Prices are read from the catalog at this moment.
func (s *CheckoutService) BuildOrder(ctx context.Context, in BuildOrderInput) (*models.Order, error) {
	db := s.db.WithContext(ctx)

	precheck, err := loadCart(db, in.Owner)
	if err != nil {
		return nil, err
	}
	if precheck == nil || len(precheck.Items) == 0 {
		return nil, ErrEmptyCart
	}

	var order models.Order
	err = db.Transaction(func(tx *gorm.DB) error {
		cart, err := loadCart(tx, in.Owner)
		if err != nil {
			return err
		}
		if cart == nil || len(cart.Items) == 0 {
			return ErrEmptyCart
		}
		for i := range cart.Items {
			if err := validateLine(&cart.Items[i]); err != nil {
				return err
			}
		}

		area, err := findDeliveryArea(tx, in.DeliveryAreaID)
		if err != nil {
			return err
		}
		coupon, err := findCoupon(tx, in.CouponCode, s.now())
		if err != nil {
			return err
		}

		totals := ComputeTotals(cartLines(cart), area.ShippingFee, s.taxRate, coupon)
		// A coupon whose minimum was not met is dropped silently.
		if coupon != nil && totals.Discount.IsZero() {
			coupon = nil
		}

		order = models.Order{
			UserID:          in.Owner.UserID,
			Status:          models.OrderPending,
			PaymentStatus:   models.PaymentStatePending,
			PaymentMethod:   in.PaymentMethod,
			Subtotal:        totals.Subtotal,
			TaxAmount:       totals.Tax,
			ShippingAmount:  totals.Shipping,
			DiscountAmount:  totals.Discount,
			TotalAmount:     totals.Total,
			ShippingAddress: strings.TrimSpace(in.ShippingAddress),
			BillingAddress:  strings.TrimSpace(in.BillingAddress),
			DeliveryAreaID:  area.ID,
		}
		if in.Owner.IsAnonymous() {
			order.SessionKey = in.Owner.SessionKey
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
		}

		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := stampOrderNumber(tx, &order); err != nil {
			return err
		}

		order.OrderItems = make([]models.OrderItem, 0, len(cart.Items))
		for i := range cart.Items {
			line := &cart.Items[i]
			unit := line.UnitPrice()
			item := models.OrderItem{
				OrderID:     order.ID,
				ProductID:   line.ProductID,
				VariantID:   line.VariantID,
				ProductName: line.Product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   unit,
				TotalPrice:  line.LineTotal(),
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			order.OrderItems = append(order.OrderItems, item)

			if err := decrementStock(tx, line); err != nil {
				return err
			}
		}

		if coupon != nil {
			if err := claimCoupon(tx, coupon.ID); err != nil {
				return err
			}
		}

		if err := tx.Unscoped().Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Cart{}, cart.ID).Error
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("order_number", order.Number()).
		Uint("order_id", order.ID).
		Str("total", order.TotalAmount.StringFixed(2)).
		Msg("checkout: order created")
	return &order, nil
}

// stampOrderNumber derives the human readable number from the id the insert just
// allocated.
func stampOrderNumber(tx *gorm.DB, order *models.Order) error {
	number := models.FormatOrderNumber(order.CreatedAt, order.ID)
	if err := tx.Model(order).Update("order_number", number).Error; err != nil {
		return fmt.Errorf("stamp order number: %w", err)
	}
	order.OrderNumber = &number
	return nil
}

func validateLine(item *models.CartItem) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if item.Product.ID == 0 || !item.Product.IsAvailable() {
		return fmt.Errorf("%w: %s", ErrProductUnavailable, item.Product.Name)
	}
	if item.VariantID != nil && (item.Variant == nil || !item.Variant.IsActive) {
		return fmt.Errorf("%w: %s", ErrProductUnavailable, item.Product.Name)
	}
	return nil
}
