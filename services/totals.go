package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Kariqs/galio-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals prices an order: subtotal from the given unit prices, tax as
// taxRate × subtotal, discount from the coupon (zero below its minimum amount) and
// total = subtotal + tax + shipping − discount.
func ComputeTotals(lines []Line, shippingFee, taxRate decimal.Decimal, coupon *models.Coupon) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	tax := subtotal.Mul(taxRate).Round(2)
	discount := decimal.Zero
	if coupon != nil {
		discount = coupon.Discount(subtotal)
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shippingFee,
		Discount: discount,
		Total:    subtotal.Add(tax).Add(shippingFee).Sub(discount),
	}
}

func cartLines(cart *models.Cart) []Line {
	lines := make([]Line, 0, len(cart.Items))
	for i := range cart.Items {
		lines = append(lines, Line{UnitPrice: cart.Items[i].UnitPrice(), Quantity: cart.Items[i].Quantity})
	}
	return lines
}

// PreviewTotals prices the owner's current cart without changing anything.
func (s *CheckoutService) PreviewTotals(ctx context.Context, owner Owner, deliveryAreaID uint, couponCode string) (Totals, error) {
	db := s.db.WithContext(ctx)

	cart, err := loadCart(db, owner)
	if err != nil {
		return Totals{}, err
	}
	if cart == nil || len(cart.Items) == 0 {
		return Totals{}, ErrEmptyCart
	}

	area, err := findDeliveryArea(db, deliveryAreaID)
	if err != nil {
		return Totals{}, err
	}
	coupon, err := findCoupon(db, couponCode, s.now())
	if err != nil {
		return Totals{}, err
	}
	return ComputeTotals(cartLines(cart), area.ShippingFee, s.taxRate, coupon), nil
}

func findDeliveryArea(db *gorm.DB, id uint) (*models.DeliveryArea, error) {
	var area models.DeliveryArea
	err := db.Where("id = ? AND is_active = ?", id, true).First(&area).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeliveryAreaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &area, nil
}

// findCoupon returns nil for an empty code.
func findCoupon(db *gorm.DB, code string, now time.Time) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	var coupon models.Coupon
	err := db.Where("code = ?", code).First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCoupon
	}
	if err != nil {
		return nil, err
	}
	if !coupon.IsValid(now) {
		return nil, ErrInvalidCoupon
	}
	return &coupon, nil
}
