package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vendora/marketplace/internal/models"
)

type CouponService interface {
	// Create validates and stores a new coupon
	Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	// List returns all coupons
	List(ctx context.Context) ([]models.Coupon, error)
	// Apply validates the coupon for the user and prices the discount
	Apply(ctx context.Context, code string, orderAmount float64, userID int64) (*models.Coupon, float64, error)
}

// CouponHandler represents HTTP handler for coupon-related requests
type CouponHandler struct {
	svc CouponService
}

// NewCouponHandler creates new CouponHandler instance
func NewCouponHandler(svc CouponService) *CouponHandler {
	return &CouponHandler{svc: svc}
}

type createCouponRequest struct {
	Code              string   `json:"code"`
	Type              string   `json:"type"`
	Value             float64  `json:"value"`
	MinOrderAmount    float64  `json:"min_order_amount"`
	MaxDiscountAmount *float64 `json:"max_discount_amount"`
	StartDate         string   `json:"start_date"`
	EndDate           string   `json:"end_date"`
	UsageLimit        int      `json:"usage_limit"`
	UserUsageLimit    int      `json:"user_usage_limit"`
	Scope             string   `json:"scope"`
	AllowedUserIDs    []int64  `json:"allowed_user_ids"`
	CategoryIDs       []int64  `json:"category_ids"`
	ServiceIDs        []int64  `json:"service_ids"`
	IsFirstOrderOnly  bool     `json:"is_first_order_only"`
}

type couponResponse struct {
	Code           string  `json:"code"`
	Type           string  `json:"type"`
	Value          float64 `json:"value"`
	MinOrderAmount float64 `json:"min_order_amount"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	UsageLimit     int     `json:"usage_limit"`
	UsageCount     int     `json:"usage_count"`
	Status         string  `json:"status"`
}

func newCouponResponse(coupon *models.Coupon) couponResponse {
	return couponResponse{
		Code:           coupon.Code,
		Type:           string(coupon.Type),
		Value:          coupon.Value,
		MinOrderAmount: coupon.MinOrderAmount,
		StartDate:      coupon.StartDate.Format(time.RFC3339),
		EndDate:        coupon.EndDate.Format(time.RFC3339),
		UsageLimit:     coupon.UsageLimit,
		UsageCount:     coupon.UsageCount,
		Status:         string(coupon.Status),
	}
}

// CreateCoupon stores a new discount rule
// 201 — купон создан;
// 400 — неверный формат запроса;
// 409 — код купона уже существует;
// 422 — недопустимое определение купона;
// 500 — внутренняя ошибка сервера.
func (ch *CouponHandler) CreateCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCouponRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		startDate, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			http.Error(w, "invalid start date", http.StatusUnprocessableEntity)
			return
		}
		endDate, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			http.Error(w, "invalid end date", http.StatusUnprocessableEntity)
			return
		}

		coupon, err := ch.svc.Create(r.Context(), &models.Coupon{
			Code:              req.Code,
			Type:              models.CouponType(req.Type),
			Value:             req.Value,
			MinOrderAmount:    req.MinOrderAmount,
			MaxDiscountAmount: req.MaxDiscountAmount,
			StartDate:         startDate,
			EndDate:           endDate,
			UsageLimit:        req.UsageLimit,
			UserUsageLimit:    req.UserUsageLimit,
			Scope:             models.CouponScope(req.Scope),
			AllowedUserIDs:    req.AllowedUserIDs,
			CategoryIDs:       req.CategoryIDs,
			ServiceIDs:        req.ServiceIDs,
			IsFirstOrderOnly:  req.IsFirstOrderOnly,
		})
		if err != nil {
			switch {
			case errors.Is(err, models.ErrInvalidCoupon):
				http.Error(w, "invalid coupon definition", http.StatusUnprocessableEntity)
			case errors.Is(err, models.ErrConflictData):
				http.Error(w, "coupon code already exists", http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, newCouponResponse(coupon))
	}
}

// ListCoupons returns all coupons
func (ch *CouponHandler) ListCoupons() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coupons, err := ch.svc.List(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		resp := make([]couponResponse, 0, len(coupons))
		for i := range coupons {
			resp = append(resp, newCouponResponse(&coupons[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

type validateCouponRequest struct {
	Code        string  `json:"code"`
	OrderAmount float64 `json:"order_amount"`
}

type validateCouponResponse struct {
	Valid    bool    `json:"valid"`
	Discount float64 `json:"discount,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// ValidateCoupon previews coupon eligibility and discount for the
// authenticated user. Rejections are reported in the body, not as errors.
// 200 — успешная обработка запроса;
// 400 — неверный формат запроса;
// 401 — пользователь не аутентифицирован;
// 500 — внутренняя ошибка сервера.
func (ch *CouponHandler) ValidateCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req validateCouponRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		_, discount, err := ch.svc.Apply(r.Context(), req.Code, req.OrderAmount, payload.UserID)
		if err != nil {
			if isCouponRejection(err) || errors.Is(err, models.ErrDataNotFound) {
				writeJSON(w, http.StatusOK, validateCouponResponse{Valid: false, Message: err.Error()})
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, validateCouponResponse{Valid: true, Discount: discount})
	}
}
