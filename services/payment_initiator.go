package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kariqs/galio-api/models"
	"github.com/Kariqs/galio-api/mpesa"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const transactionDesc = "Payment for order"

// ChargeAmount is the order total in whole shillings, as sent to the provider.
func ChargeAmount(order *models.Order) int64 {
	return order.TotalAmount.Round(0).IntPart()
}

// InitiatePayment sends the STK push for order and records the PENDING payment. The
// returned message is the provider's text meant for the customer.
func (s *CheckoutService) InitiatePayment(ctx context.Context, order *models.Order, phone string) (*models.Payment, string, error) {
	ack, err := s.provider.STKPush(ctx, mpesa.STKPushRequest{
		PhoneNumber:      phone,
		Amount:           ChargeAmount(order),
		AccountReference: order.Number(),
		TransactionDesc:  transactionDesc,
	})
	if err != nil {
		log.Warn().Err(err).Str("order_number", order.Number()).Msg("mpesa: stk push failed")

		var providerErr *mpesa.ProviderError
		if errors.As(err, &providerErr) && providerErr.Message != "" {
			return nil, "", fmt.Errorf("%w: %s", ErrPaymentInitiation, providerErr.Message)
		}
		return nil, "", fmt.Errorf("%w: payment service unavailable, please try again", ErrPaymentInitiation)
	}

	payment := models.Payment{
		OrderID:           order.ID,
		CheckoutRequestID: ack.CheckoutRequestID,
		MerchantRequestID: ack.MerchantRequestID,
		Status:            models.PaymentPending,
		PhoneNumber:       phone,
		Amount:            order.TotalAmount,
	}
	if len(ack.Raw) > 0 {
		payment.RawResponse = datatypes.JSON(ack.Raw)
	}

	// The push is already on the customer's phone, the row must be written regardless.
	db := s.db.WithContext(context.WithoutCancel(ctx))
	if err := db.Create(&payment).Error; err != nil {
		log.Error().Err(err).
			Str("order_number", order.Number()).
			Str("checkout_request_id", ack.CheckoutRequestID).
			Msg("mpesa: push accepted but payment row could not be saved, reconcile manually")
		markAwaitingPayment(db, order, ack.CheckoutRequestID)
		return nil, "", fmt.Errorf("%w: %v", ErrPaymentNotRecorded, err)
	}

	log.Info().
		Str("order_number", order.Number()).
		Str("checkout_request_id", payment.CheckoutRequestID).
		Int64("amount", ChargeAmount(order)).
		Msg("mpesa: stk push sent")

	s.replayEarlyCallback(ctx, payment.CheckoutRequestID)

	message := ack.CustomerMessage
	if message == "" {
		message = "Payment request sent. Please check your phone to complete the payment."
	}
	return &payment, message, nil
}

// markAwaitingPayment keeps the reaper away from an order whose push went out
// without a payment row, and lets its callback find the order later.
func markAwaitingPayment(db *gorm.DB, order *models.Order, checkoutRequestID string) {
	err := db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("awaiting_checkout_request_id", checkoutRequestID).Error
	if err != nil {
		log.Error().Err(err).
			Str("order_number", order.Number()).
			Str("checkout_request_id", checkoutRequestID).
			Msg("mpesa: could not mark order as awaiting payment")
		return
	}
	order.AwaitingCheckoutRequestID = &checkoutRequestID
}

// replayEarlyCallback applies a callback that arrived before the payment row existed.
func (s *CheckoutService) replayEarlyCallback(ctx context.Context, checkoutRequestID string) {
	record, ok := s.cache.Get(checkoutRequestID)
	if !ok || record.Callback == nil {
		return
	}

	log.Info().Str("checkout_request_id", checkoutRequestID).Msg("mpesa: replaying callback received before payment was recorded")
	if _, err := s.ApplyCallback(context.WithoutCancel(ctx), *record.Callback, record.Payload); err != nil {
		log.Error().Err(err).Str("checkout_request_id", checkoutRequestID).Msg("mpesa: callback replay failed")
	}
}
