package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"storefront-system/internal/logger"
	"storefront-system/internal/models"
)

// PromoHandler обрабатывает промокоды: staff CRUD и публичную проверку кода.
type PromoHandler struct {
	promoService PromoService
	log          *logger.Logger
}

// NewPromoHandler создает обработчик промокодов.
func NewPromoHandler(promoService PromoService, log *logger.Logger) *PromoHandler {
	return &PromoHandler{
		promoService: promoService,
		log:          log,
	}
}

// HandleCollection обрабатывает создание и листинг промокодов.
func (h *PromoHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *PromoHandler) create(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}

	var req models.CreatePromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	promo, err := h.promoService.CreatePromotion(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create promotion")
		return
	}

	writeJSONResponse(w, http.StatusCreated, promo)
}

func (h *PromoHandler) list(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}

	limit := parsePositiveInt(r.URL.Query().Get("limit"), 50, 200)
	offset := parsePositiveInt(r.URL.Query().Get("offset"), 0, 1<<30)

	promos, err := h.promoService.ListPromotions(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list promotions")
		return
	}
	if promos == nil {
		promos = []*models.Promotion{}
	}

	writeJSONResponse(w, http.StatusOK, promos)
}

// HandleItem обрабатывает получение, обновление и удаление промокода по коду.
func (h *PromoHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	code, err := extractPromoCodeFromPath(r.URL.Path)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, ok := requireStaff(w, r); !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		promo, err := h.promoService.GetPromotion(r.Context(), code)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to get promotion")
			return
		}
		writeJSONResponse(w, http.StatusOK, promo)
	case http.MethodPut:
		var req models.UpdatePromotionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		promo, err := h.promoService.UpdatePromotion(r.Context(), code, &req)
		if err != nil {
			writeServiceError(w, h.log, err, "Failed to update promotion")
			return
		}
		writeJSONResponse(w, http.StatusOK, promo)
	case http.MethodDelete:
		if err := h.promoService.DeletePromotion(r.Context(), code); err != nil {
			writeServiceError(w, h.log, err, "Failed to delete promotion")
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// ValidateCode проверяет промокод против присланного итога. Публичный
// endpoint для формы корзины, без записей.
func (h *PromoHandler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.ValidateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.promoService.ValidateCode(r.Context(), req.Code, req.Subtotal)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to validate coupon code")
		return
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

func extractPromoCodeFromPath(path string) (string, error) {
	const prefix = "/api/promo-codes/"
	if !strings.HasPrefix(path, prefix) {
		return "", fmt.Errorf("invalid path format")
	}
	code := strings.TrimPrefix(path, prefix)
	if code == "" || strings.Contains(code, "/") {
		return "", fmt.Errorf("missing promo code in path")
	}
	return code, nil
}
