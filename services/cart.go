package services

import (
	"context"
	"errors"

	"github.com/Kariqs/galio-api/models"
	"gorm.io/gorm"
)

type CartService struct {
	db *gorm.DB
}

func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

// GetCart returns the owner's cart, or an empty unsaved cart when there is none.
func (s *CartService) GetCart(ctx context.Context, owner Owner) (*models.Cart, error) {
	cart, err := loadCart(s.db.WithContext(ctx), owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &models.Cart{UserID: owner.UserID, SessionKey: owner.SessionKey, Items: []models.CartItem{}}, nil
	}
	return cart, nil
}

// AddItem adds quantity to the (product, variant) line, creating the cart and the
// line as needed.
func (s *CartService) AddItem(ctx context.Context, owner Owner, productID uint, variantID *uint, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	var item models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductUnavailable
			}
			return err
		}
		if !product.IsAvailable() {
			return ErrProductUnavailable
		}
		if variantID != nil {
			var variant models.ProductVariant
			err := tx.Where("id = ? AND product_id = ?", *variantID, productID).First(&variant).Error
			if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !variant.IsActive) {
				return ErrProductUnavailable
			}
			if err != nil {
				return err
			}
		}

		cart, err := findOrCreateCart(tx, owner)
		if err != nil {
			return err
		}
		return addToCart(tx, cart.ID, productID, variantID, quantity, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *CartService) UpdateItem(ctx context.Context, owner Owner, itemID uint, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	db := s.db.WithContext(ctx)

	item, err := findOwnedItem(db, owner, itemID)
	if err != nil {
		return err
	}
	return db.Model(item).Update("quantity", quantity).Error
}

func (s *CartService) RemoveItem(ctx context.Context, owner Owner, itemID uint) error {
	db := s.db.WithContext(ctx)

	item, err := findOwnedItem(db, owner, itemID)
	if err != nil {
		return err
	}
	return db.Unscoped().Delete(item).Error
}

func loadCart(db *gorm.DB, owner Owner) (*models.Cart, error) {
	var cart models.Cart
	err := owner.scope(db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Product").
		Preload("Items.Variant").
		First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func findOrCreateCart(tx *gorm.DB, owner Owner) (*models.Cart, error) {
	var cart models.Cart
	err := owner.scope(tx).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = models.Cart{UserID: owner.UserID}
	if owner.IsAnonymous() {
		cart.SessionKey = owner.SessionKey
	}
	if err := tx.Create(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func addToCart(tx *gorm.DB, cartID, productID uint, variantID *uint, quantity int, out *models.CartItem) error {
	query := tx.Where("cart_id = ? AND product_id = ?", cartID, productID)
	if variantID != nil {
		query = query.Where("variant_id = ?", *variantID)
	} else {
		query = query.Where("variant_id IS NULL")
	}

	err := query.First(out).Error
	if err == nil {
		out.Quantity += quantity
		return tx.Model(out).Update("quantity", out.Quantity).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	*out = models.CartItem{CartID: cartID, ProductID: productID, VariantID: variantID, Quantity: quantity}
	return tx.Create(out).Error
}

func findOwnedItem(db *gorm.DB, owner Owner, itemID uint) (*models.CartItem, error) {
	cart, err := loadCart(db, owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartItemNotFound
	}

	var item models.CartItem
	err = db.Where("id = ? AND cart_id = ?", itemID, cart.ID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// restoreCart puts order lines back into the owner's cart so a failed checkout can
// be retried as is.
func restoreCart(tx *gorm.DB, owner Owner, items []models.OrderItem) error {
	cart, err := findOrCreateCart(tx, owner)
	if err != nil {
		return err
	}
	for _, item := range items {
		var line models.CartItem
		if err := addToCart(tx, cart.ID, item.ProductID, item.VariantID, item.Quantity, &line); err != nil {
			return err
		}
	}
	return nil
}
