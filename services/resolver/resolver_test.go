package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"assistbackend/config"
	"assistbackend/core"
	"assistbackend/models"
	"assistbackend/services"
)

var (
	resolverNow   = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	testCalendars = []models.Calendar{
		{ID: "me@example.com", Summary: "Personal", Primary: true},
		{ID: "team@example.com", Summary: "Team"},
	}
)

func setupResolverTest() (*EventResolver, *services.MockCalendarService) {
	calendarService := new(services.MockCalendarService)
	resolver := NewEventResolver(calendarService, DefaultOptions())
	resolver.now = func() time.Time { return resolverNow }
	return resolver, calendarService
}

func listParams(calendarID string, search bool) interface{} {
	return mock.MatchedBy(func(params models.ListEventsParams) bool {
		return params.CalendarID == calendarID && (params.Query != "") == search
	})
}

func event(id, summary string, start time.Time) models.CalendarEvent {
	return models.CalendarEvent{ID: id, Status: "confirmed", Summary: summary, Start: start, End: start.Add(time.Hour)}
}

func TestEventResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	tomorrow := resolverNow.Add(24 * time.Hour)

	t.Run("search assisted match skips the exhaustive pass", func(t *testing.T) {
		resolver, calendarService := setupResolverTest()
		calendarService.On("ListCalendars", mock.Anything).Return(testCalendars, nil)
		calendarService.On("ListEvents", mock.Anything, listParams("me@example.com", true)).
			Return([]models.CalendarEvent{event("evt-1", "🍰 Dessert Crawl", tomorrow)}, nil)
		calendarService.On("ListEvents", mock.Anything, listParams("team@example.com", true)).
			Return([]models.CalendarEvent{}, nil)

		result, err := resolver.Resolve(ctx, "dessert crawl", nil, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Match)
		assert.Equal(t, "evt-1", result.Match.ID)
		assert.Equal(t, "Personal", result.Match.CalendarName)
		assert.Equal(t, "me@example.com", result.Match.CalendarID)
		assert.GreaterOrEqual(t, result.Match.Confidence, 0.5)
		assert.Equal(t, models.ResolveStrategySearchAssisted, result.Strategy)
		require.Len(t, result.Candidates, 1)

		calendarService.AssertNotCalled(t, "ListEvents", mock.Anything, listParams("me@example.com", false))
	})

	t.Run("falls back to scoring every event", func(t *testing.T) {
		resolver, calendarService := setupResolverTest()
		calendarService.On("ListCalendars", mock.Anything).Return(testCalendars, nil)
		calendarService.On("ListEvents", mock.Anything, listParams("me@example.com", true)).Return([]models.CalendarEvent{}, nil)
		calendarService.On("ListEvents", mock.Anything, listParams("team@example.com", true)).Return([]models.CalendarEvent{}, nil)
		calendarService.On("ListEvents", mock.Anything, listParams("me@example.com", false)).
			Return([]models.CalendarEvent{event("evt-1", "Groceries", tomorrow)}, nil)
		calendarService.On("ListEvents", mock.Anything, listParams("team@example.com", false)).
			Return([]models.CalendarEvent{event("evt-2", "Weekly team standup 🚀", tomorrow)}, nil)

		result, err := resolver.Resolve(ctx, "team standup", nil, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Match)
		assert.Equal(t, "evt-2", result.Match.ID)
		assert.Equal(t, "Team", result.Match.CalendarName)
		assert.Equal(t, models.ResolveStrategyExhaustive, result.Strategy)
		// Groceries has no overlap and is not a candidate
		require.Len(t, result.Candidates, 1)
	})

	t.Run("weak overlap yields candidates without a match", func(t *testing.T) {
		resolver, calendarService := setupResolverTest()
		calendarService.On("ListCalendars", mock.Anything).Return(testCalendars[:1], nil)
		calendarService.On("ListEvents", mock.Anything, listParams("me@example.com", true)).
			Return([]models.CalendarEvent{event("evt-1", "Design review session", tomorrow)}, nil)
		calendarService.On("ListEvents", mock.Anything, listParams("me@example.com", false)).
			Return([]models.CalendarEvent{
				event("evt-1", "Design review session", tomorrow),
				event("evt-2", "Lunch", tomorrow),
			}, nil)

		result, err := resolver.Resolve(ctx, "budget review meeting", nil, nil)
		require.NoError(t, err)
		assert.Nil(t, result.Match)
		assert.Equal(t, models.ResolveStrategyExhaustive, result.Strategy)
		require.Len(t, result.Candidates, 1)
		assert.Equal(t, "evt-1", result.Candidates[0].ID)
		assert.Less(t, result.Candidates[0].Confidence, 0.5)
		assert.GreaterOrEqual(t, result.Candidates[0].Confidence, 0.2)
	})

	t.Run("keeps the top three candidates in order", func(t *testing.T) {
		cancelled := event("cancelled", "Project kickoff sync", tomorrow)
		cancelled.Status = "cancelled"
		events := []models.CalendarEvent{
			event("late", "Project sync", tomorrow.Add(2*time.Hour)),
			event("early", "Project sync", tomorrow),
			event("exact", "Project kickoff sync", tomorrow),
			event("weak", "Project retro", tomorrow),
			event("weaker", "Projects review", tomorrow.Add(time.Hour)),
			cancelled,
		}
		resolver, calendarService := setupResolverTest()
		calendarService.On("ListCalendars", mock.Anything).Return(testCalendars[:1], nil)
		calendarService.On("ListEvents", mock.Anything, listParams("me@example.com", true)).Return([]models.CalendarEvent{}, nil)
		calendarService.On("ListEvents", mock.Anything, listParams("me@example.com", false)).
			Return(events, nil)

		result, err := resolver.Resolve(ctx, "project kickoff sync", nil, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Match)
		assert.Equal(t, "exact", result.Match.ID)
		require.Len(t, result.Candidates, 3)
		assert.Equal(t, []string{"exact", "early", "late"},
			[]string{result.Candidates[0].ID, result.Candidates[1].ID, result.Candidates[2].ID})
	})

	t.Run("uses a thirty day window around now by default", func(t *testing.T) {
		resolver, calendarService := setupResolverTest()
		calendarService.On("ListCalendars", mock.Anything).Return(testCalendars[:1], nil)
		calendarService.On("ListEvents", mock.Anything, mock.MatchedBy(func(params models.ListEventsParams) bool {
			return params.TimeMin.Equal(resolverNow.Add(-30*24*time.Hour)) &&
				params.TimeMax.Equal(resolverNow.Add(30*24*time.Hour)) &&
				params.MaxResults == 100
		})).Return([]models.CalendarEvent{event("evt-1", "Dentist", tomorrow)}, nil)

		result, err := resolver.Resolve(ctx, "dentist", nil, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Match)
	})

	t.Run("failing calendar is skipped", func(t *testing.T) {
		resolver, calendarService := setupResolverTest()
		calendarService.On("ListCalendars", mock.Anything).Return(testCalendars, nil)
		calendarService.On("ListEvents", mock.Anything, listParams("me@example.com", true)).
			Return(nil, &core.ProviderError{StatusCode: 404, Message: "Not Found"})
		calendarService.On("ListEvents", mock.Anything, listParams("team@example.com", true)).
			Return([]models.CalendarEvent{event("evt-2", "Dentist", tomorrow)}, nil)

		result, err := resolver.Resolve(ctx, "dentist", nil, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Match)
		assert.Equal(t, "evt-2", result.Match.ID)
	})

	t.Run("broken credential fails the whole resolve", func(t *testing.T) {
		resolver, calendarService := setupResolverTest()
		calendarService.On("ListCalendars", mock.Anything).Return(testCalendars, nil)
		calendarService.On("ListEvents", mock.Anything, mock.Anything).
			Return(nil, core.ErrNotConnected)

		_, err := resolver.Resolve(ctx, "dentist", nil, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrNotConnected))
	})

	t.Run("validates input before calling the provider", func(t *testing.T) {
		resolver, calendarService := setupResolverTest()
		timeMin := resolverNow
		timeMax := resolverNow.Add(-time.Hour)

		_, err := resolver.Resolve(ctx, "   ", nil, nil)
		assert.Equal(t, "description is required", core.UserMessage(err))

		_, err = resolver.Resolve(ctx, "dentist", &timeMin, &timeMax)
		assert.Equal(t, "timeMax must be after timeMin", core.UserMessage(err))

		calendarService.AssertNotCalled(t, "ListCalendars", mock.Anything)
	})
}

func TestOptionsFromConfig(t *testing.T) {
	options := OptionsFromConfig(config.ResolverConfig{MatchThreshold: 0.7, CandidateThreshold: 0.3})
	assert.Equal(t, 0.7, options.MatchThreshold)
	assert.Equal(t, 0.3, options.CandidateThreshold)
	assert.Equal(t, 3, options.MaxCandidates)
}
