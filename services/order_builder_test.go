package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/Kariqs/galio-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func buildInput(owner Owner, areaID uint) BuildOrderInput {
	return BuildOrderInput{
		Owner:           owner,
		DeliveryAreaID:  areaID,
		ShippingAddress: "Sarit Centre, Westlands",
		BillingAddress:  "Sarit Centre, Westlands",
		PaymentMethod:   models.PaymentMethodMpesa,
	}
}

func TestBuildOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := sessionOwner()
	f.fillCart(t, owner, f.product.ID, 2)

	order, err := f.svc.BuildOrder(ctx, buildInput(owner, f.area.ID))
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{8}-\d{4}$`), order.Number())
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.PaymentStatePending, order.PaymentStatus)
	assert.True(t, decimal.NewFromInt(250).Equal(order.TotalAmount), "total %s", order.TotalAmount)
	assert.True(t, order.TotalAmount.Equal(order.Subtotal.Add(order.TaxAmount).Add(order.ShippingAmount).Sub(order.DiscountAmount)))

	itemsTotal := decimal.Zero
	for _, item := range order.OrderItems {
		itemsTotal = itemsTotal.Add(item.TotalPrice)
	}
	assert.True(t, order.Subtotal.Equal(itemsTotal))

	assert.Equal(t, 8, f.stock(t, f.product.ID))

	var carts int64
	require.NoError(t, f.db.Model(&models.Cart{}).Count(&carts).Error)
	assert.Zero(t, carts)

	stored := f.reloadOrder(t, order.ID)
	assert.Equal(t, order.Number(), stored.Number())
	assert.Equal(t, owner.SessionKey, stored.SessionKey)
}

func TestBuildOrderSnapshotsPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := sessionOwner()
	f.fillCart(t, owner, f.product.ID, 1)

	require.NoError(t, f.db.Model(&f.product).Update("price", decimal.NewFromInt(120)).Error)

	order, err := f.svc.BuildOrder(ctx, buildInput(owner, f.area.ID))
	require.NoError(t, err)
	require.Len(t, order.OrderItems, 1)
	assert.True(t, decimal.NewFromInt(120).Equal(order.OrderItems[0].UnitPrice))

	require.NoError(t, f.db.Model(&f.product).Update("price", decimal.NewFromInt(500)).Error)

	var item models.OrderItem
	require.NoError(t, f.db.Where("order_id = ?", order.ID).First(&item).Error)
	assert.True(t, decimal.NewFromInt(120).Equal(item.UnitPrice))
}

func TestBuildOrderRejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, f *fixture, owner Owner) uint
		wantErr error
	}{
		{
			name:    "empty cart",
			prepare: func(t *testing.T, f *fixture, owner Owner) uint { return f.area.ID },
			wantErr: ErrEmptyCart,
		},
		{
			name: "unknown delivery area",
			prepare: func(t *testing.T, f *fixture, owner Owner) uint {
				f.fillCart(t, owner, f.product.ID, 1)
				return 9999
			},
			wantErr: ErrDeliveryAreaNotFound,
		},
		{
			name: "insufficient stock",
			prepare: func(t *testing.T, f *fixture, owner Owner) uint {
				f.fillCart(t, owner, f.product.ID, 11)
				return f.area.ID
			},
			wantErr: ErrInsufficientStock,
		},
		{
			name: "product withdrawn after adding to cart",
			prepare: func(t *testing.T, f *fixture, owner Owner) uint {
				f.fillCart(t, owner, f.product.ID, 1)
				require.NoError(t, f.db.Model(&f.product).Update("status", models.ProductDiscontinued).Error)
				return f.area.ID
			},
			wantErr: ErrProductUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			owner := sessionOwner()
			areaID := tt.prepare(t, f, owner)

			_, err := f.svc.BuildOrder(context.Background(), buildInput(owner, areaID))
			assert.ErrorIs(t, err, tt.wantErr)

			var orders, items int64
			require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
			require.NoError(t, f.db.Model(&models.OrderItem{}).Count(&items).Error)
			assert.Zero(t, orders)
			assert.Zero(t, items)
			assert.Equal(t, 10, f.stock(t, f.product.ID))
		})
	}
}

func TestBuildOrderRollsBackEarlierLines(t *testing.T) {
	f := newFixture(t)
	owner := sessionOwner()

	scarce := models.Product{
		Name:           "Maasai Shuka",
		SKU:            "MS-001",
		Price:          decimal.NewFromInt(300),
		StockQuantity:  1,
		TrackInventory: true,
		Status:         models.ProductActive,
	}
	require.NoError(t, f.db.Create(&scarce).Error)

	f.fillCart(t, owner, f.product.ID, 3)
	f.fillCart(t, owner, scarce.ID, 2)

	_, err := f.svc.BuildOrder(context.Background(), buildInput(owner, f.area.ID))
	require.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 10, f.stock(t, f.product.ID))
	assert.Equal(t, 1, f.stock(t, scarce.ID))

	cart, err := f.carts.GetCart(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestBuildOrderCouponBelowMinimumIsDropped(t *testing.T) {
	f := newFixture(t)
	owner := sessionOwner()
	f.fillCart(t, owner, f.product.ID, 2)

	minimum := decimal.NewFromInt(1000)
	coupon := models.Coupon{
		Code:          "BIG10",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		MinimumAmount: &minimum,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(time.Hour),
		IsActive:      true,
	}
	require.NoError(t, f.db.Create(&coupon).Error)

	in := buildInput(owner, f.area.ID)
	in.CouponCode = "BIG10"
	order, err := f.svc.BuildOrder(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, order.DiscountAmount.IsZero())
	assert.True(t, decimal.NewFromInt(250).Equal(order.TotalAmount))
	assert.Nil(t, order.CouponID)

	require.NoError(t, f.db.First(&coupon, coupon.ID).Error)
	assert.Zero(t, coupon.UsedCount)
}

func TestBuildOrderClaimsCoupon(t *testing.T) {
	f := newFixture(t)
	owner := sessionOwner()
	f.fillCart(t, owner, f.product.ID, 2)

	limit := 1
	coupon := models.Coupon{
		Code:          "KARIBU",
		DiscountType:  models.DiscountFixed,
		DiscountValue: decimal.NewFromInt(25),
		UsageLimit:    &limit,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidTo:       time.Now().Add(time.Hour),
		IsActive:      true,
	}
	require.NoError(t, f.db.Create(&coupon).Error)

	in := buildInput(owner, f.area.ID)
	in.CouponCode = "KARIBU"
	order, err := f.svc.BuildOrder(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(225).Equal(order.TotalAmount))
	require.NotNil(t, order.CouponID)

	require.NoError(t, f.db.First(&coupon, coupon.ID).Error)
	assert.Equal(t, 1, coupon.UsedCount)

	second := sessionOwner()
	f.fillCart(t, second, f.product.ID, 1)
	in.Owner = second
	_, err = f.svc.BuildOrder(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidCoupon)
}

func TestConcurrentCheckoutForLastUnit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&f.product).Update("stock_quantity", 1).Error)

	owners := []Owner{sessionOwner(), sessionOwner()}
	for _, owner := range owners {
		f.fillCart(t, owner, f.product.ID, 1)
	}
	f.provider.On("STKPush", mock.Anything, mock.Anything).Return(accepted("ws_CO_LAST"), nil).Once()

	var wg sync.WaitGroup
	errs := make([]error, len(owners))
	for i, owner := range owners {
		wg.Add(1)
		go func(i int, owner Owner) {
			defer wg.Done()
			_, errs[i] = f.svc.Checkout(context.Background(), owner, CheckoutRequest{
				DeliveryAreaID:  f.area.ID,
				ShippingAddress: "Kenyatta Avenue",
				Phone:           "+254 712 345 678",
			})
		}(i, owner)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, f.stock(t, f.product.ID))

	var orders int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	assert.EqualValues(t, 1, orders)
	f.provider.AssertExpectations(t)
}
