package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kariqs/galio-api/models"
	"gorm.io/gorm"
)

const msgPollTimedOut = "Payment verification timed out. If you completed the payment, check your order history shortly."

type PollStatus struct {
	Status      models.PaymentStatus `json:"status"`
	Message     string               `json:"message"`
	RedirectURL string               `json:"redirect_url,omitempty"`
	OrderNumber string               `json:"order_number,omitempty"`
	Abandoned   bool                 `json:"abandoned"`
}

func ConfirmationURL(orderNumber string) string {
	return fmt.Sprintf("/order-confirmation/%s/", orderNumber)
}

const checkoutURL = "/checkout/"

// PaymentStatus answers a client poll with one read. The payment row wins; the
// status cache is consulted only when no row exists yet.
func (s *CheckoutService) PaymentStatus(ctx context.Context, checkoutRequestID string) (PollStatus, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Preload("Order").
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&payment).Error
	if err == nil {
		return s.statusFromPayment(&payment), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return PollStatus{}, err
	}

	if record, ok := s.cache.Get(checkoutRequestID); ok {
		return statusFromRecord(record), nil
	}
	return PollStatus{Status: models.PaymentPending, Message: msgPaymentPending}, nil
}

func (s *CheckoutService) statusFromPayment(payment *models.Payment) PollStatus {
	orderNumber := ""
	if payment.Order != nil {
		orderNumber = payment.Order.Number()
	}

	switch payment.Status {
	case models.PaymentSuccess:
		return PollStatus{
			Status:      models.PaymentSuccess,
			Message:     msgPaymentSuccess,
			RedirectURL: ConfirmationURL(orderNumber),
			OrderNumber: orderNumber,
		}
	case models.PaymentFailed:
		return PollStatus{
			Status:      models.PaymentFailed,
			Message:     failureMessage(payment.ResultDesc),
			RedirectURL: checkoutURL,
			OrderNumber: orderNumber,
		}
	}

	status := PollStatus{Status: models.PaymentPending, Message: msgPaymentPending, OrderNumber: orderNumber}
	if payment.NeedsReview {
		status.Message = msgPaymentUnderway
		return status
	}
	if s.pollWindow > 0 && s.now().Sub(payment.CreatedAt) > s.pollWindow {
		status.Message = msgPollTimedOut
		status.Abandoned = true
	}
	return status
}

func statusFromRecord(record StatusRecord) PollStatus {
	status := PollStatus{
		Status:      record.Status,
		Message:     record.Message,
		OrderNumber: record.OrderNumber,
	}
	switch record.Status {
	case models.PaymentSuccess:
		if record.OrderNumber != "" {
			status.RedirectURL = ConfirmationURL(record.OrderNumber)
		}
	case models.PaymentFailed:
		status.RedirectURL = checkoutURL
	}
	return status
}
