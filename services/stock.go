package services

import (
	"fmt"

	"github.com/Kariqs/galio-api/models"
	"gorm.io/gorm"
)

// decrementStock takes qty units in a single guarded UPDATE. Concurrent checkouts
// serialize on the row and the loser sees zero affected rows instead of going negative.
func decrementStock(tx *gorm.DB, item *models.CartItem) error {
	if !item.Product.TrackInventory {
		return nil
	}

	var res *gorm.DB
	if item.VariantID != nil {
		res = tx.Model(&models.ProductVariant{}).
			Where("id = ? AND stock_quantity >= ?", *item.VariantID, item.Quantity).
			Update("stock_quantity", gorm.Expr("stock_quantity - ?", item.Quantity))
	} else {
		res = tx.Model(&models.Product{}).
			Where("id = ? AND stock_quantity >= ?", item.ProductID, item.Quantity).
			Update("stock_quantity", gorm.Expr("stock_quantity - ?", item.Quantity))
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w for %s", ErrInsufficientStock, item.Product.Name)
	}
	return nil
}

func restoreStock(tx *gorm.DB, items []models.OrderItem) error {
	for _, item := range items {
		var err error
		if item.VariantID != nil {
			tracked := tx.Model(&models.Product{}).Select("id").Where("track_inventory = ?", true)
			err = tx.Model(&models.ProductVariant{}).
				Where("id = ? AND product_id IN (?)", *item.VariantID, tracked).
				Update("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).Error
		} else {
			err = tx.Model(&models.Product{}).
				Where("id = ? AND track_inventory = ?", item.ProductID, true).
				Update("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).Error
		}
		if err != nil {
			return fmt.Errorf("restore stock for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

// claimCoupon counts one use, failing when the usage limit was reached meanwhile.
func claimCoupon(tx *gorm.DB, couponID uint) error {
	res := tx.Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", couponID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidCoupon
	}
	return nil
}

func releaseCoupon(tx *gorm.DB, couponID *uint) error {
	if couponID == nil {
		return nil
	}
	return tx.Model(&models.Coupon{}).
		Where("id = ? AND used_count > 0", *couponID).
		Update("used_count", gorm.Expr("used_count - 1")).Error
}
