package handlers

import (
	"net/http"

	"github.com/Dosada05/lunch-roulette/services"
	"github.com/go-chi/chi/v5"
)

type RestaurantHandler struct {
	restaurantService services.RestaurantService
}

func NewRestaurantHandler(rs services.RestaurantService) *RestaurantHandler {
	return &RestaurantHandler{restaurantService: rs}
}

// GetDetail godoc
// @Summary Меню и отзывы ресторана
// @Tags restaurants
// @Produce json
// @Param rid path string true "Restaurant ref"
// @Success 200 {object} models.Detail
// @Failure 404 {object} map[string]string "Ресторан не найден"
// @Failure 502 {object} map[string]string "API ресторанов недоступен"
// @Router /restaurants/{rid} [get]
func (h *RestaurantHandler) GetDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.restaurantService.GetDetail(r.Context(), chi.URLParam(r, "rid"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, detail, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Autocomplete godoc
// @Summary Подсказки поиска
// @Tags restaurants
// @Produce json
// @Param keyword query string true "Keyword"
// @Success 200 {object} map[string]interface{}
// @Router /search/autocomplete [get]
func (h *RestaurantHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	items, err := h.restaurantService.Autocomplete(r.Context(), r.URL.Query().Get("keyword"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"suggestions": items}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
