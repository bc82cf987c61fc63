// Package rest публикует операции корзины по HTTP поверх chi.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
)

const maxRequestBodySize = 1 << 20 // 1MB

// CartService — операции корзины, которые нужны HTTP-слою.
// Операции ничего не возвращают: отказы доходят до покупателя через Notifier.
type CartService interface {
	Cart() domain.Cart
	AddProduct(ctx context.Context, productID int64)
	RemoveProduct(ctx context.Context, productID int64)
	UpdateProductAmount(ctx context.Context, productID int64, amount int)
}

// Handler обслуживает /cart.
type Handler struct {
	cart   CartService
	logger *log.Entry
}

// NewHandler создаёт HTTP-обработчик корзины.
func NewHandler(cart CartService, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "rest")
	}
	return &Handler{cart: cart, logger: logger}
}

// UpdateAmountRequest описывает тело PUT /cart/products/{productID}.
type UpdateAmountRequest struct {
	Amount *int `json:"amount"`
}

// ErrorResponse — тело ответа с ошибкой валидации.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// GetCart возвращает текущую корзину.
func (h *Handler) GetCart(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.cart.Cart())
}

// AddProduct добавляет одну единицу товара.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	h.cart.AddProduct(r.Context(), productID)
	h.respondJSON(w, http.StatusOK, h.cart.Cart())
}

// RemoveProduct удаляет позицию целиком.
func (h *Handler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	h.cart.RemoveProduct(r.Context(), productID)
	h.respondJSON(w, http.StatusOK, h.cart.Cart())
}

// UpdateProductAmount выставляет количество позиции.
func (h *Handler) UpdateProductAmount(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req UpdateAmountRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Amount == nil {
		h.respondError(w, http.StatusBadRequest, "invalid_amount", "amount is required")
		return
	}

	h.cart.UpdateProductAmount(r.Context(), productID, *req.Amount)
	h.respondJSON(w, http.StatusOK, h.cart.Cart())
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "productID")
	productID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || productID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "product id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Warn("failed to encode response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, code, details string) {
	h.respondJSON(w, status, ErrorResponse{Error: code, Details: details})
}
