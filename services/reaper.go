package services

import (
	"context"

	"github.com/Kariqs/galio-api/models"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const DefaultReaperSchedule = "@every 5m"

// ReapOrphanOrders cancels pending orders that never got a payment row, which only
// happens when the rollback after a failed push could not complete. Orders with a
// payment row, or marked as awaiting one, are left for their callback.
func (s *CheckoutService) ReapOrphanOrders(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.orphanAge)

	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("status = ? AND payment_status = ? AND created_at < ?", models.OrderPending, models.PaymentStatePending, cutoff).
		Where("awaiting_checkout_request_id IS NULL").
		Where("NOT EXISTS (?)", s.db.Model(&models.Payment{}).Select("1").Where("payments.order_id = orders.id")).
		Find(&orders).Error
	if err != nil {
		return 0, err
	}

	reaped := 0
	for i := range orders {
		order := &orders[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Order{}).
				Where("id = ? AND status = ? AND awaiting_checkout_request_id IS NULL", order.ID, models.OrderPending).
				Where("NOT EXISTS (?)", tx.Model(&models.Payment{}).Select("1").Where("payments.order_id = orders.id")).
				Updates(map[string]any{
					"status":         models.OrderCancelled,
					"payment_status": models.PaymentStateFailed,
				})
			if res.Error != nil || res.RowsAffected == 0 {
				return res.Error
			}

			var items []models.OrderItem
			if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
				return err
			}
			if err := restoreStock(tx, items); err != nil {
				return err
			}
			if err := releaseCoupon(tx, order.CouponID); err != nil {
				return err
			}
			reaped++
			return nil
		})
		if err != nil {
			log.Error().Err(err).Str("order_number", order.Number()).Msg("reaper: failed to cancel orphan order")
			continue
		}
	}

	if reaped > 0 {
		log.Info().Int("count", reaped).Msg("reaper: cancelled orphan orders")
	}
	return reaped, nil
}

// StartReaper schedules ReapOrphanOrders. The caller stops the returned cron.
func (s *CheckoutService) StartReaper(schedule string) (*cron.Cron, error) {
	if schedule == "" {
		schedule = DefaultReaperSchedule
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.ReapOrphanOrders(context.Background()); err != nil {
			log.Error().Err(err).Msg("reaper: run failed")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.Info().Str("schedule", schedule).Msg("reaper: scheduled")
	return c, nil
}
