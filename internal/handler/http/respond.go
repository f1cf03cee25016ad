package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vendora/marketplace/internal/models"
)

const bookingDateLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return
	}
}

type orderResponse struct {
	Number         string             `json:"number"`
	UserID         int64              `json:"user_id"`
	VendorID       int64              `json:"vendor_id"`
	ServiceID      int64              `json:"service_id"`
	ServicePrice   float64            `json:"service_price"`
	DiscountAmount float64            `json:"discount_amount"`
	Subtotal       float64            `json:"subtotal"`
	Tax            float64            `json:"tax"`
	PlatformFee    float64            `json:"platform_fee"`
	TotalAmount    float64            `json:"total_amount"`
	Status         string             `json:"status"`
	PaymentStatus  string             `json:"payment_status"`
	BookingDate    string             `json:"booking_date"`
	BookingTime    string             `json:"booking_time"`
	Notes          string             `json:"notes,omitempty"`
	CouponCode     string             `json:"coupon_code,omitempty"`
	CreatedAt      string             `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		Number:         order.Number,
		UserID:         order.UserID,
		VendorID:       order.VendorID,
		ServiceID:      order.ServiceID,
		ServicePrice:   order.ServicePrice,
		DiscountAmount: order.DiscountAmount,
		Subtotal:       order.Subtotal,
		Tax:            order.Tax,
		PlatformFee:    order.PlatformFee,
		TotalAmount:    order.TotalAmount,
		Status:         string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		BookingDate:    order.BookingDate.Format(bookingDateLayout),
		BookingTime:    order.BookingTime,
		Notes:          order.Notes,
		CreatedAt:      order.CreatedAt.Format(time.RFC3339),
	}
	if order.Coupon != nil {
		resp.CouponCode = order.Coupon.Code
	}
	return resp
}

type transactionResponse struct {
	Number           string  `json:"number"`
	OrderNumber      string  `json:"order_number"`
	Type             string  `json:"type"`
	Amount           float64 `json:"amount"`
	CommissionRate   float64 `json:"commission_rate"`
	CommissionAmount float64 `json:"commission_amount"`
	VendorAmount     float64 `json:"vendor_amount"`
	PaymentMethod    string  `json:"payment_method"`
	Status           string  `json:"status"`
	GatewayRef       string  `json:"gateway_ref,omitempty"`
	RefundAmount     float64 `json:"refund_amount,omitempty"`
	CompletedAt      string  `json:"completed_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

func newTransactionResponse(txn *models.Transaction) transactionResponse {
	resp := transactionResponse{
		Number:           txn.Number,
		OrderNumber:      txn.OrderNumber,
		Type:             string(txn.Type),
		Amount:           txn.Amount,
		CommissionRate:   txn.CommissionRate,
		CommissionAmount: txn.CommissionAmount,
		VendorAmount:     txn.VendorAmount,
		PaymentMethod:    txn.PaymentMethod,
		Status:           string(txn.Status),
		GatewayRef:       txn.GatewayRef,
		RefundAmount:     txn.RefundAmount,
		CreatedAt:        txn.CreatedAt.Format(time.RFC3339),
	}
	if txn.CompletedAt != nil {
		resp.CompletedAt = txn.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

type payoutResponse struct {
	Number      string  `json:"number"`
	VendorID    int64   `json:"vendor_id"`
	Amount      float64 `json:"amount"`
	Method      string  `json:"method"`
	Status      string  `json:"status"`
	PeriodStart string  `json:"period_start"`
	PeriodEnd   string  `json:"period_end"`
	Count       int     `json:"transaction_count,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func newPayoutResponse(payout *models.Payout) payoutResponse {
	return payoutResponse{
		Number:      payout.Number,
		VendorID:    payout.VendorID,
		Amount:      payout.Amount,
		Method:      payout.Method,
		Status:      string(payout.Status),
		PeriodStart: payout.PeriodStart.Format(time.RFC3339),
		PeriodEnd:   payout.PeriodEnd.Format(time.RFC3339),
		Count:       len(payout.TransactionIDs),
		CreatedAt:   payout.CreatedAt.Format(time.RFC3339),
	}
}
