package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart belongs either to an account (UserID) or to an anonymous session (SessionKey).
type Cart struct {
	gorm.Model
	UserID     *uint      `json:"userId" gorm:"index"`
	SessionKey string     `json:"sessionKey" gorm:"size:64;index"`
	Items      []CartItem `json:"items" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
}

type CartItem struct {
	gorm.Model
	CartID    uint            `json:"cartId" gorm:"uniqueIndex:idx_cart_product_variant;not null"`
	ProductID uint            `json:"productId" gorm:"uniqueIndex:idx_cart_product_variant;not null"`
	VariantID *uint           `json:"variantId" gorm:"uniqueIndex:idx_cart_product_variant"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Product   Product         `json:"product"`
	Variant   *ProductVariant `json:"variant,omitempty"`
}

// UnitPrice reads the live catalog price: variant price when set, product price otherwise.
func (i *CartItem) UnitPrice() decimal.Decimal {
	if i.Variant != nil {
		return i.Variant.DisplayPrice(&i.Product)
	}
	return i.Product.Price
}

func (i *CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for i := range c.Items {
		total = total.Add(c.Items[i].LineTotal())
	}
	return total
}

func (c *Cart) TotalItems() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}
