package services

import (
	"github.com/Dosada05/lunch-roulette/content"
	"github.com/Dosada05/lunch-roulette/models"
)

type InfoService interface {
	FAQ() []models.FAQ
	PatchNotes() []models.PatchNote
	ContactTypes() []models.QuestionType
}

type infoService struct {
	catalog *content.Catalog
}

func NewInfoService(catalog *content.Catalog) InfoService {
	return &infoService{catalog: catalog}
}

func (s *infoService) FAQ() []models.FAQ {
	return append([]models.FAQ{}, s.catalog.FAQ...)
}

func (s *infoService) PatchNotes() []models.PatchNote {
	return append([]models.PatchNote{}, s.catalog.PatchNotes...)
}

func (s *infoService) ContactTypes() []models.QuestionType {
	return append([]models.QuestionType{}, models.QuestionTypes...)
}
