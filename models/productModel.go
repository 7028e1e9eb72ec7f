package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductStatus string

const (
	ProductActive       ProductStatus = "active"
	ProductInactive     ProductStatus = "inactive"
	ProductOutOfStock   ProductStatus = "out_of_stock"
	ProductDiscontinued ProductStatus = "discontinued"
)

type Product struct {
	gorm.Model
	Name           string           `json:"name" gorm:"size:200;not null"`
	SKU            string           `json:"sku" gorm:"size:50;uniqueIndex;not null"`
	Price          decimal.Decimal  `json:"price" gorm:"type:decimal(10,2);not null"`
	StockQuantity  int              `json:"stockQuantity" gorm:"not null"`
	TrackInventory bool             `json:"trackInventory"`
	Status         ProductStatus    `json:"status" gorm:"size:20;not null"`
	Variants       []ProductVariant `json:"variants,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

func (p *Product) IsAvailable() bool {
	return p.Status == ProductActive
}

type ProductVariant struct {
	gorm.Model
	ProductID     uint             `json:"productId" gorm:"index;not null"`
	SKU           string           `json:"sku" gorm:"size:50;uniqueIndex;not null"`
	Price         *decimal.Decimal `json:"price" gorm:"type:decimal(10,2)"`
	StockQuantity int              `json:"stockQuantity" gorm:"not null"`
	IsActive      bool             `json:"isActive"`
}

// DisplayPrice falls back to the parent product price when the variant has none.
func (v *ProductVariant) DisplayPrice(product *Product) decimal.Decimal {
	if v.Price != nil {
		return *v.Price
	}
	return product.Price
}
