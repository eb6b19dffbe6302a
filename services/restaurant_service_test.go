package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dosada05/lunch-roulette/models"
	"github.com/Dosada05/lunch-roulette/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutocomplete_FiltersExactKeyword(t *testing.T) {
	repo := &repositories.FakeRestaurantRepository{
		AutocompleteFn: func(_ context.Context, keyword string) ([]models.Suggestion, error) {
			assert.Equal(t, "Pho", keyword)
			return []models.Suggestion{{ID: 1, Name: "pho"}, {ID: 2, Name: "Pho Hanoi"}, {ID: 3, Name: "PHO"}}, nil
		},
	}
	svc := NewRestaurantService(repo, nil)

	got, err := svc.Autocomplete(context.Background(), "  Pho ")
	require.NoError(t, err)
	assert.Equal(t, []models.Suggestion{{ID: 2, Name: "Pho Hanoi"}}, got)

	empty, err := svc.Autocomplete(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAutocomplete_UpstreamError(t *testing.T) {
	repo := &repositories.FakeRestaurantRepository{
		AutocompleteFn: func(context.Context, string) ([]models.Suggestion, error) {
			return nil, errors.New("down")
		},
	}
	_, err := NewRestaurantService(repo, nil).Autocomplete(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestGetDetail_ErrorMapping(t *testing.T) {
	repo := &repositories.FakeRestaurantRepository{
		GetDetailFn: func(_ context.Context, rid string) (*models.Detail, error) {
			if rid == "gone" {
				return nil, repositories.ErrRestaurantNotFound
			}
			return nil, repositories.ErrUpstreamStatus
		},
	}
	svc := NewRestaurantService(repo, nil)

	_, err := svc.GetDetail(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrRestaurantNotFound)
	_, err = svc.GetDetail(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	_, err = svc.GetDetail(context.Background(), " ")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestGetDetail_ConcurrentCallersShareOneRequest(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	repo := &repositories.FakeRestaurantRepository{
		GetDetailFn: func(context.Context, string) (*models.Detail, error) {
			calls.Add(1)
			<-release
			return &models.Detail{Menus: []models.Menu{{ID: 1, Name: "Bibimbap"}}, Reviews: []models.Review{}}, nil
		},
	}
	svc := NewRestaurantService(repo, nil)

	const callers = 8
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	results := make([]*models.Detail, callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			d, err := svc.GetDetail(context.Background(), "r1")
			assert.NoError(t, err)
			results[i] = d
		}(i)
	}
	started.Wait()
	close(release)
	done.Wait()

	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	assert.LessOrEqual(t, calls.Load(), int32(callers))
	for _, d := range results {
		require.NotNil(t, d)
		assert.Equal(t, "Bibimbap", d.Menus[0].Name)
	}
	results[0].Menus[0].Name = "changed"
	assert.Equal(t, "Bibimbap", results[1].Menus[0].Name)
}

func TestGetDetail_CallerCancellationDoesNotAbortSharedRequest(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	repo := &repositories.FakeRestaurantRepository{
		GetDetailFn: func(ctx context.Context, _ string) (*models.Detail, error) {
			calls.Add(1)
			<-release
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return &models.Detail{Menus: []models.Menu{{ID: 1, Name: "Bibimbap"}}, Reviews: []models.Review{}}, nil
		},
	}
	svc := NewRestaurantService(repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		detail *models.Detail
		err    error
	}
	done := make(chan result, 1)
	go func() {
		d, err := svc.GetDetail(ctx, "r1")
		done <- result{d, err}
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	close(release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "Bibimbap", res.detail.Menus[0].Name)
}
