package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Dosada05/lunch-roulette/metrics"
	"github.com/Dosada05/lunch-roulette/models"
	"github.com/Dosada05/lunch-roulette/repositories"
	"github.com/Dosada05/lunch-roulette/storage"
	"github.com/Dosada05/lunch-roulette/utils"
	"github.com/google/uuid"
)

const (
	MaxAttachmentSize = 10 << 20
	maxTitleLength    = 200
	maxContentLength  = 5000
)

// ValidationErrors maps a form field to its problem.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(fields, ", "))
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidationFailed
}

type SubmitQuestionInput struct {
	Name      string
	Email     string
	Type      string
	Title     string
	Content   string
	Agreement bool
	File      *models.Attachment
}

type ContactService interface {
	Submit(ctx context.Context, input SubmitQuestionInput) error
}

type contactService struct {
	repo        repositories.RestaurantRepository
	attachments storage.AttachmentStore
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewContactService forwards questions to the restaurant API. When
// attachments is nil the file itself is forwarded.
func NewContactService(repo repositories.RestaurantRepository, attachments storage.AttachmentStore, m *metrics.Metrics, logger *slog.Logger) ContactService {
	if logger == nil {
		logger = slog.Default()
	}
	return &contactService{repo: repo, attachments: attachments, metrics: m, logger: logger}
}

func (s *contactService) Submit(ctx context.Context, input SubmitQuestionInput) error {
	q, errs := validateQuestion(input)
	if len(errs) > 0 {
		s.metrics.Question("invalid")
		return errs
	}

	file := input.File
	if file != nil && len(file.Data) == 0 {
		file = nil
	}

	var uploadedKey string
	if file != nil && s.attachments != nil {
		url, key, err := s.upload(ctx, file)
		if err != nil {
			s.logger.WarnContext(ctx, "Attachment upload failed, forwarding file instead", slog.Any("error", err))
		} else {
			q.AttachmentURL = url
			uploadedKey = key
			file = nil
		}
	}

	if err := s.repo.SubmitQuestion(ctx, q, file); err != nil {
		s.metrics.Question("failed")
		if uploadedKey != "" {
			if delErr := s.attachments.Delete(context.WithoutCancel(ctx), uploadedKey); delErr != nil {
				s.logger.WarnContext(ctx, "Failed to remove orphaned attachment", slog.String("key", uploadedKey), slog.Any("error", delErr))
			}
		}
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	s.metrics.Question("sent")
	s.logger.InfoContext(ctx, "Question submitted", slog.String("type", string(q.Type)), slog.Bool("attachment", q.AttachmentURL != "" || file != nil))
	return nil
}

func (s *contactService) upload(ctx context.Context, file *models.Attachment) (string, string, error) {
	ext, err := attachmentExtension(file.Filename, file.ContentType)
	if err != nil {
		ext = ".bin"
	}
	key := "questions/" + uuid.NewString() + ext
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	res, err := s.attachments.Upload(ctx, key, contentType, bytes.NewReader(file.Data))
	if err != nil {
		return "", "", err
	}
	return res.Location, res.Key, nil
}

func validateQuestion(input SubmitQuestionInput) (models.Question, ValidationErrors) {
	errs := ValidationErrors{}
	q := models.Question{
		Name:      utils.NormalizeSpace(input.Name),
		Email:     strings.TrimSpace(input.Email),
		Type:      models.QuestionType(strings.TrimSpace(input.Type)),
		Title:     utils.NormalizeSpace(input.Title),
		Content:   strings.TrimSpace(input.Content),
		Agreement: input.Agreement,
	}

	if q.Name == "" {
		errs["name"] = "must be provided"
	}
	switch {
	case q.Email == "":
		errs["email"] = "must be provided"
	case !utils.IsValidEmail(q.Email):
		errs["email"] = "must be a valid email address"
	}
	switch {
	case q.Type == "":
		errs["type"] = "must be provided"
	case !q.Type.Valid():
		errs["type"] = "must be one of the listed question types"
	}
	switch {
	case q.Title == "":
		errs["title"] = "must be provided"
	case utf8.RuneCountInString(q.Title) > maxTitleLength:
		errs["title"] = fmt.Sprintf("must not be longer than %d characters", maxTitleLength)
	}
	switch {
	case q.Content == "":
		errs["content"] = "must be provided"
	case utf8.RuneCountInString(q.Content) > maxContentLength:
		errs["content"] = fmt.Sprintf("must not be longer than %d characters", maxContentLength)
	}
	if !q.Agreement {
		errs["agreement"] = "must be accepted"
	}
	if input.File != nil && len(input.File.Data) > MaxAttachmentSize {
		errs["file"] = fmt.Sprintf("must not be larger than %d bytes", MaxAttachmentSize)
	}
	return q, errs
}
