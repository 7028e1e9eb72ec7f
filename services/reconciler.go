package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Kariqs/galio-api/archive"
	"github.com/Kariqs/galio-api/events"
	"github.com/Kariqs/galio-api/models"
	"github.com/Kariqs/galio-api/mpesa"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CallbackOutcome string

const (
	OutcomeApplied        CallbackOutcome = "applied"
	OutcomeDuplicate      CallbackOutcome = "duplicate"
	OutcomeUnknownRequest CallbackOutcome = "unknown_request"
	OutcomeInvalid        CallbackOutcome = "invalid"
	OutcomeInconsistent   CallbackOutcome = "inconsistent"
	OutcomeError          CallbackOutcome = "error"
)

const (
	msgPaymentSuccess   = "Payment completed successfully"
	msgPaymentPending   = "Waiting for payment confirmation"
	msgPaymentUnderway  = "Payment received, your order is being reviewed"
	reviewOrderCanceled = "payment succeeded for a cancelled order"

	reviewPaymentNotRecorded = "payment was not recorded when the push was sent"
)

const archiveTimeout = 10 * time.Second

// HandleCallback processes a raw callback body. It never fails: the outcome is for
// logging only and the provider is always acknowledged. Processing is detached from
// ctx so a dropped connection cannot abort the transition halfway.
func (s *CheckoutService) HandleCallback(ctx context.Context, payload []byte) CallbackOutcome {
	ctx = context.WithoutCancel(ctx)

	var callback mpesa.Callback
	if err := json.Unmarshal(payload, &callback); err != nil {
		log.Warn().Err(err).Msg("mpesa callback: malformed payload")
		return OutcomeInvalid
	}
	stk := callback.Body.STKCallback
	if stk.CheckoutRequestID == "" {
		log.Warn().Msg("mpesa callback: missing CheckoutRequestID")
		return OutcomeInvalid
	}

	outcome, err := s.ApplyCallback(ctx, stk, payload)
	if err != nil {
		log.Error().Err(err).
			Str("checkout_request_id", stk.CheckoutRequestID).
			Str("outcome", string(outcome)).
			Msg("mpesa callback: processing failed")
	}

	go s.archiveCallback(ctx, archive.CallbackKey(stk.CheckoutRequestID, s.now()), payload)
	return outcome
}

// archiveCallback runs off the request path so the provider's ack never waits on
// the bucket.
func (s *CheckoutService) archiveCallback(ctx context.Context, key string, payload []byte) {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	if err := s.archive.Archive(ctx, key, payload); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("mpesa callback: archive failed")
	}
}

// ApplyCallback moves the matching payment and its order to their terminal state
// exactly once. Callbacks for unknown ids are parked in the status cache and
// replayed when the payment row is recorded.
func (s *CheckoutService) ApplyCallback(ctx context.Context, stk mpesa.STKCallback, payload []byte) (CallbackOutcome, error) {
	payment, err := findPayment(s.db.WithContext(ctx), stk.CheckoutRequestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.unmatchedCallback(ctx, stk, payload)
	}
	if err != nil {
		return OutcomeError, err
	}
	return s.settle(ctx, payment, stk, payload)
}

func findPayment(db *gorm.DB, checkoutRequestID string) (*models.Payment, error) {
	var payment models.Payment
	err := db.Preload("Order").Where("checkout_request_id = ?", checkoutRequestID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func callbackLogger(stk mpesa.STKCallback) zerolog.Logger {
	return log.With().
		Str("checkout_request_id", stk.CheckoutRequestID).
		Int("result_code", stk.ResultCode).
		Logger()
}

// unmatchedCallback handles a callback no payment row matches. An order marked as
// awaiting this id gets its missing payment row; anything else is parked.
func (s *CheckoutService) unmatchedCallback(ctx context.Context, stk mpesa.STKCallback, payload []byte) (CallbackOutcome, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Where("awaiting_checkout_request_id = ?", stk.CheckoutRequestID).First(&order).Error
	if err == nil {
		return s.recordMissingPayment(ctx, &order, stk, payload)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return OutcomeError, err
	}
	return s.parkCallback(ctx, stk, payload)
}

// parkCallback caches the callback for replayEarlyCallback. The row is looked up
// once more afterwards: if it was committed between the first lookup and the
// parking, the replay has already missed the cache entry.
func (s *CheckoutService) parkCallback(ctx context.Context, stk mpesa.STKCallback, payload []byte) (CallbackOutcome, error) {
	record := s.recordFor(stk, "")
	parked := stk
	record.Callback = &parked
	record.Payload = payload
	s.cache.Set(stk.CheckoutRequestID, record)

	payment, err := findPayment(s.db.WithContext(ctx), stk.CheckoutRequestID)
	if err == nil {
		return s.settle(ctx, payment, stk, payload)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return OutcomeError, err
	}

	logger := callbackLogger(stk)
	logger.Warn().Msg("mpesa callback: no payment matches this request")
	return OutcomeUnknownRequest, nil
}

// recordMissingPayment writes the payment row InitiatePayment could not save. A
// failure settles as usual since no money moved. A success leaves the order as it
// is and is flagged for manual reconciliation.
func (s *CheckoutService) recordMissingPayment(ctx context.Context, order *models.Order, stk mpesa.STKCallback, payload []byte) (CallbackOutcome, error) {
	db := s.db.WithContext(ctx)
	logger := callbackLogger(stk)

	resultCode := stk.ResultCode
	payment := models.Payment{
		OrderID:           order.ID,
		CheckoutRequestID: stk.CheckoutRequestID,
		MerchantRequestID: stk.MerchantRequestID,
		Status:            models.PaymentPending,
		Amount:            order.TotalAmount,
		ResultCode:        &resultCode,
		ResultDesc:        stk.ResultDesc,
		CallbackPayload:   datatypes.JSON(payload),
	}
	if stk.Succeeded() {
		meta := stk.Metadata()
		if receipt, ok := meta.Get(mpesa.ItemReceiptNumber); ok {
			payment.MpesaReceipt = &receipt
		}
		if phone, ok := meta.Get(mpesa.ItemPhoneNumber); ok {
			payment.PhoneNumber = phone
		}
		if date, ok := meta.Get(mpesa.ItemTransactionDate); ok {
			payment.TransactionDate = date
		}
		payment.NeedsReview = true
		payment.ReviewReason = reviewPaymentNotRecorded
	}

	if err := db.Create(&payment).Error; err != nil {
		// A concurrent delivery may have written it first.
		if _, findErr := findPayment(db, stk.CheckoutRequestID); findErr == nil {
			return OutcomeDuplicate, nil
		}
		return OutcomeError, err
	}
	payment.Order = order

	if !stk.Succeeded() {
		return s.settle(ctx, &payment, stk, payload)
	}

	logger.Error().
		Str("order_number", order.Number()).
		Msg("mpesa callback: payment succeeded for an order whose payment was never recorded, manual reconciliation required")
	record := s.recordFor(stk, order.Number())
	record.Status = models.PaymentPending
	record.Message = msgPaymentUnderway
	s.cache.Set(stk.CheckoutRequestID, record)
	return OutcomeInconsistent, fmt.Errorf("%w: %s", ErrConsistencyViolation, reviewPaymentNotRecorded)
}

// settle applies stk to a payment loaded earlier. The updates are guarded on the
// PENDING status, so a stale copy whose row went terminal meanwhile counts as a
// duplicate. Payments flagged for review are left to manual reconciliation.
func (s *CheckoutService) settle(ctx context.Context, payment *models.Payment, stk mpesa.STKCallback, payload []byte) (CallbackOutcome, error) {
	db := s.db.WithContext(ctx)
	logger := callbackLogger(stk)

	if payment.Status.IsTerminal() {
		logger.Info().Str("status", string(payment.Status)).Msg("mpesa callback: payment already settled, ignoring")
		return OutcomeDuplicate, nil
	}
	if payment.NeedsReview {
		logger.Warn().Str("reason", payment.ReviewReason).Msg("mpesa callback: payment is awaiting manual reconciliation, ignoring")
		return OutcomeDuplicate, nil
	}

	orderNumber := ""
	if payment.Order != nil {
		orderNumber = payment.Order.Number()
	}

	var err error
	if stk.Succeeded() {
		err = s.applySuccess(db, payment, stk, payload)
	} else {
		err = s.applyFailure(db, payment, stk, payload)
	}

	switch {
	case errors.Is(err, errAlreadyTerminal):
		logger.Info().Msg("mpesa callback: lost race to a concurrent delivery, ignoring")
		return OutcomeDuplicate, nil
	case errors.Is(err, ErrConsistencyViolation):
		s.flagForReview(db, payment, stk, payload, reviewOrderCanceled)
		logger.Error().
			Str("order_number", orderNumber).
			Msg("mpesa callback: payment succeeded but order is cancelled, manual reconciliation required")
		record := s.recordFor(stk, orderNumber)
		record.Status = models.PaymentPending
		record.Message = msgPaymentUnderway
		s.cache.Set(stk.CheckoutRequestID, record)
		return OutcomeInconsistent, err
	case err != nil:
		return OutcomeError, err
	}

	s.cache.Set(stk.CheckoutRequestID, s.recordFor(stk, orderNumber))
	logger.Info().Str("order_number", orderNumber).Msg("mpesa callback: payment settled")
	s.publishOutcome(ctx, payment, orderNumber, stk)
	return OutcomeApplied, nil
}

func (s *CheckoutService) applySuccess(db *gorm.DB, payment *models.Payment, stk mpesa.STKCallback, payload []byte) error {
	meta := stk.Metadata()
	updates := map[string]any{
		"status":           models.PaymentSuccess,
		"result_code":      stk.ResultCode,
		"result_desc":      stk.ResultDesc,
		"callback_payload": datatypes.JSON(payload),
	}
	if receipt, ok := meta.Get(mpesa.ItemReceiptNumber); ok {
		updates["mpesa_receipt"] = receipt
	}
	if phone, ok := meta.Get(mpesa.ItemPhoneNumber); ok {
		updates["phone_number"] = phone
	}
	if date, ok := meta.Get(mpesa.ItemTransactionDate); ok {
		updates["transaction_date"] = date
	}
	if raw, ok := meta.Get(mpesa.ItemAmount); ok {
		checkAmount(payment, raw)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ? AND needs_review = ?", payment.ID, models.PaymentPending, false).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyTerminal
		}

		res = tx.Model(&models.Order{}).
			Where("id = ? AND status <> ?", payment.OrderID, models.OrderCancelled).
			Updates(map[string]any{
				"status":         models.OrderConfirmed,
				"payment_status": models.PaymentStatePaid,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConsistencyViolation
		}
		payment.Status = models.PaymentSuccess
		if receipt, ok := updates["mpesa_receipt"].(string); ok {
			payment.MpesaReceipt = &receipt
		}
		return nil
	})
}

func (s *CheckoutService) applyFailure(db *gorm.DB, payment *models.Payment, stk mpesa.STKCallback, payload []byte) error {
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ? AND needs_review = ?", payment.ID, models.PaymentPending, false).
			Updates(map[string]any{
				"status":           models.PaymentFailed,
				"result_code":      stk.ResultCode,
				"result_desc":      stk.ResultDesc,
				"callback_payload": datatypes.JSON(payload),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyTerminal
		}
		payment.Status = models.PaymentFailed

		// An order another attempt already paid for stays as it is.
		res = tx.Model(&models.Order{}).
			Where("id = ? AND status = ? AND payment_status <> ?", payment.OrderID, models.OrderPending, models.PaymentStatePaid).
			Updates(map[string]any{
				"status":         models.OrderCancelled,
				"payment_status": models.PaymentStateFailed,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var order models.Order
		if err := tx.Preload("OrderItems").First(&order, payment.OrderID).Error; err != nil {
			return err
		}
		if err := restoreStock(tx, order.OrderItems); err != nil {
			return err
		}
		return releaseCoupon(tx, order.CouponID)
	})
}

// flagForReview runs outside the rolled back transaction so the evidence survives.
func (s *CheckoutService) flagForReview(db *gorm.DB, payment *models.Payment, stk mpesa.STKCallback, payload []byte, reason string) {
	updates := map[string]any{
		"needs_review":     true,
		"review_reason":    reason,
		"result_code":      stk.ResultCode,
		"result_desc":      stk.ResultDesc,
		"callback_payload": datatypes.JSON(payload),
	}
	if receipt, ok := stk.Metadata().Get(mpesa.ItemReceiptNumber); ok {
		updates["mpesa_receipt"] = receipt
	}
	if err := db.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(updates).Error; err != nil {
		log.Error().Err(err).Str("checkout_request_id", payment.CheckoutRequestID).Msg("mpesa callback: could not flag payment for review")
	}
}

func checkAmount(payment *models.Payment, raw string) {
	paid, err := decimal.NewFromString(raw)
	if err != nil {
		log.Warn().Str("checkout_request_id", payment.CheckoutRequestID).Str("amount", raw).Msg("mpesa callback: unreadable amount")
		return
	}
	if !paid.Equal(payment.Amount.Round(0)) {
		log.Warn().
			Str("checkout_request_id", payment.CheckoutRequestID).
			Str("expected", payment.Amount.Round(0).String()).
			Str("paid", paid.String()).
			Msg("mpesa callback: amount differs from the amount requested")
	}
}

func (s *CheckoutService) recordFor(stk mpesa.STKCallback, orderNumber string) StatusRecord {
	record := StatusRecord{
		OrderNumber: orderNumber,
		ResultCode:  stk.ResultCode,
		RecordedAt:  s.now(),
	}
	if stk.Succeeded() {
		record.Status = models.PaymentSuccess
		record.Message = msgPaymentSuccess
	} else {
		record.Status = models.PaymentFailed
		record.Message = failureMessage(stk.ResultDesc)
	}
	return record
}

func failureMessage(desc string) string {
	if desc == "" {
		return "Payment failed"
	}
	return fmt.Sprintf("Payment failed: %s", desc)
}

func (s *CheckoutService) publishOutcome(ctx context.Context, payment *models.Payment, orderNumber string, stk mpesa.STKCallback) {
	event := events.OrderEvent{
		OrderID:           payment.OrderID,
		OrderNumber:       orderNumber,
		CheckoutRequestID: payment.CheckoutRequestID,
		Amount:            payment.Amount.StringFixed(2),
		OccurredAt:        s.now(),
	}
	if stk.Succeeded() {
		event.Type = events.OrderConfirmed
		if payment.MpesaReceipt != nil {
			event.Receipt = *payment.MpesaReceipt
		}
	} else {
		event.Type = events.OrderCancelled
		event.Reason = stk.ResultDesc
	}

	if err := s.events.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("order_number", orderNumber).Msg("mpesa callback: event publish failed")
	}
}
