package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Dosada05/lunch-roulette/models"
	"github.com/Dosada05/lunch-roulette/services"
)

// multipart overhead on top of the attachment itself
const maxQuestionBody = services.MaxAttachmentSize + 1<<20

type ContactHandler struct {
	contactService services.ContactService
}

func NewContactHandler(cs services.ContactService) *ContactHandler {
	return &ContactHandler{contactService: cs}
}

type questionData struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Agreement bool   `json:"agreement"`
}

// SubmitQuestion godoc
// @Summary Отправить обращение
// @Tags contact
// @Description multipart/form-data: часть `data` с JSON полями формы и необязательный файл `file` (до 10 МБ).
// @Accept mpfd
// @Produce json
// @Param data formData string true "JSON: name, email, type, title, content, agreement"
// @Param file formData file false "Вложение"
// @Success 202 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string "Файл слишком большой"
// @Failure 422 {object} map[string]string "Ошибки полей"
// @Failure 429 {object} map[string]string "Слишком много запросов"
// @Router /questions [post]
func (h *ContactHandler) SubmitQuestion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxQuestionBody)
	if err := r.ParseMultipartForm(2 << 20); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) || strings.Contains(err.Error(), "request body too large") {
			mapServiceErrorToHTTP(w, r, services.ErrAttachmentTooLarge)
			return
		}
		badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	raw, err := formPart(r, "data")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var data questionData
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		badRequestResponse(w, r, fmt.Errorf("data part contains invalid JSON: %w", err))
		return
	}

	input := services.SubmitQuestionInput{
		Name:      data.Name,
		Email:     data.Email,
		Type:      data.Type,
		Title:     data.Title,
		Content:   data.Content,
		Agreement: data.Agreement,
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		payload, err := io.ReadAll(io.LimitReader(file, services.MaxAttachmentSize+1))
		if err != nil {
			badRequestResponse(w, r, fmt.Errorf("failed to read file: %w", err))
			return
		}
		input.File = &models.Attachment{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        payload,
		}
	case !errors.Is(err, http.ErrMissingFile):
		badRequestResponse(w, r, fmt.Errorf("invalid file part: %w", err))
		return
	}

	if err := h.contactService.Submit(r.Context(), input); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusAccepted, jsonResponse{"status": "received"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// formPart returns a field sent either as a plain value or as a file part
// (browsers send Blob parts as files).
func formPart(r *http.Request, name string) ([]byte, error) {
	if vs := r.MultipartForm.Value[name]; len(vs) > 0 {
		return []byte(vs[0]), nil
	}
	f, _, err := r.FormFile(name)
	if err != nil {
		return nil, fmt.Errorf("multipart part %q is required", name)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, 1<<20))
}
