package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type County struct {
	gorm.Model
	Name     string         `json:"name" gorm:"size:100;uniqueIndex;not null"`
	Code     string         `json:"code" gorm:"size:10;uniqueIndex;not null"`
	IsActive bool           `json:"isActive"`
	Areas    []DeliveryArea `json:"areas" gorm:"foreignKey:CountyID;constraint:OnDelete:CASCADE"`
}

// DeliveryArea maps a named area to a flat shipping fee and an expected delivery time.
type DeliveryArea struct {
	gorm.Model
	Name         string          `json:"name" gorm:"size:100;uniqueIndex:idx_area_county;not null"`
	CountyID     uint            `json:"countyId" gorm:"uniqueIndex:idx_area_county;not null"`
	ShippingFee  decimal.Decimal `json:"shippingFee" gorm:"type:decimal(8,2);not null"`
	DeliveryDays int             `json:"deliveryDays"`
	IsActive     bool            `json:"isActive"`
	County       *County         `json:"county,omitempty"`
}
