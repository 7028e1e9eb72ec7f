package models

// All lists every entity managed by AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&ProductVariant{},
		&County{},
		&DeliveryArea{},
		&Coupon{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Payment{},
	}
}
