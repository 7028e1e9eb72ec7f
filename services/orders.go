package services

import (
	"context"
	"errors"

	"github.com/Kariqs/galio-api/models"
	"gorm.io/gorm"
)

type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// ListOrders returns one page of the owner's orders, newest first, and the total count.
func (s *OrderService) ListOrders(ctx context.Context, owner Owner, page, limit int) ([]models.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 15
	}
	db := s.db.WithContext(ctx)

	var count int64
	if err := owner.scope(db.Model(&models.Order{})).Count(&count).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := owner.scope(db).
		Preload("OrderItems").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&orders).Error
	return orders, count, err
}

func (s *OrderService) GetOrderByNumber(ctx context.Context, owner Owner, number string) (*models.Order, error) {
	var order models.Order
	err := owner.scope(s.db.WithContext(ctx)).
		Preload("OrderItems").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Where("order_number = ?", number).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// PaymentsNeedingReview lists payments whose callback could not be applied cleanly.
func (s *OrderService) PaymentsNeedingReview(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Preload("Order").
		Where("needs_review = ?", true).
		Order("updated_at DESC").
		Find(&payments).Error
	return payments, err
}

// DeliveryAreas lists active counties with their active areas.
func (s *OrderService) DeliveryAreas(ctx context.Context) ([]models.County, error) {
	var counties []models.County
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Preload("Areas", "is_active = ?", true).
		Order("name").
		Find(&counties).Error
	return counties, err
}
