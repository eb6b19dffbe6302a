package repositories

import (
	"context"
	"sync"

	"github.com/Dosada05/lunch-roulette/models"
)

// FakeRestaurantRepository is an in-process RestaurantRepository for tests.
// Unset function fields return empty results.
type FakeRestaurantRepository struct {
	NearbyFn         func(ctx context.Context, q NearbyQuery) ([]models.Candidate, error)
	SearchFn         func(ctx context.Context, keyword string) ([]models.Candidate, error)
	AutocompleteFn   func(ctx context.Context, keyword string) ([]models.Suggestion, error)
	GetDetailFn      func(ctx context.Context, rid string) (*models.Detail, error)
	SubmitQuestionFn func(ctx context.Context, q models.Question, file *models.Attachment) error

	mu           sync.Mutex
	NearbyCalls  []NearbyQuery
	SearchCalls  []string
	DetailCalls  []string
	QuestionSent []models.Question
}

var _ RestaurantRepository = (*FakeRestaurantRepository)(nil)

func (f *FakeRestaurantRepository) Nearby(ctx context.Context, q NearbyQuery) ([]models.Candidate, error) {
	f.mu.Lock()
	f.NearbyCalls = append(f.NearbyCalls, q)
	f.mu.Unlock()
	if f.NearbyFn == nil {
		return []models.Candidate{}, nil
	}
	return f.NearbyFn(ctx, q)
}

func (f *FakeRestaurantRepository) Search(ctx context.Context, keyword string) ([]models.Candidate, error) {
	f.mu.Lock()
	f.SearchCalls = append(f.SearchCalls, keyword)
	f.mu.Unlock()
	if f.SearchFn == nil {
		return []models.Candidate{}, nil
	}
	return f.SearchFn(ctx, keyword)
}

func (f *FakeRestaurantRepository) Autocomplete(ctx context.Context, keyword string) ([]models.Suggestion, error) {
	if f.AutocompleteFn == nil {
		return []models.Suggestion{}, nil
	}
	return f.AutocompleteFn(ctx, keyword)
}

func (f *FakeRestaurantRepository) GetDetail(ctx context.Context, rid string) (*models.Detail, error) {
	f.mu.Lock()
	f.DetailCalls = append(f.DetailCalls, rid)
	f.mu.Unlock()
	if f.GetDetailFn == nil {
		return &models.Detail{Menus: []models.Menu{}, Reviews: []models.Review{}}, nil
	}
	return f.GetDetailFn(ctx, rid)
}

func (f *FakeRestaurantRepository) SubmitQuestion(ctx context.Context, q models.Question, file *models.Attachment) error {
	f.mu.Lock()
	f.QuestionSent = append(f.QuestionSent, q)
	f.mu.Unlock()
	if f.SubmitQuestionFn == nil {
		return nil
	}
	return f.SubmitQuestionFn(ctx, q, file)
}

// Calls returns a copy of the recorded nearby queries.
func (f *FakeRestaurantRepository) Calls() []NearbyQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]NearbyQuery(nil), f.NearbyCalls...)
}
