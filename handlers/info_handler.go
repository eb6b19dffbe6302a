package handlers

import (
	"net/http"

	"github.com/Dosada05/lunch-roulette/services"
)

type InfoHandler struct {
	infoService services.InfoService
}

func NewInfoHandler(is services.InfoService) *InfoHandler {
	return &InfoHandler{infoService: is}
}

// FAQ godoc
// @Summary Часто задаваемые вопросы
// @Tags info
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /info/faq [get]
func (h *InfoHandler) FAQ(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"faq": h.infoService.FAQ()}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// PatchNotes godoc
// @Summary Список обновлений, новые первыми
// @Tags info
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /info/patchnotes [get]
func (h *InfoHandler) PatchNotes(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"patch_notes": h.infoService.PatchNotes()}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ContactTypes godoc
// @Summary Типы обращений
// @Tags info
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /info/contact-types [get]
func (h *InfoHandler) ContactTypes(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"types": h.infoService.ContactTypes()}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
