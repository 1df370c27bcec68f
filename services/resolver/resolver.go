package resolver

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"assistbackend/core"
	"assistbackend/models"
	"assistbackend/services"
)

const eventStatusCancelled = "cancelled"

type EventResolver struct {
	calendarService services.CalendarService
	options         Options
	now             func() time.Time
}

func NewEventResolver(calendarService services.CalendarService, options Options) *EventResolver {
	return &EventResolver{
		calendarService: calendarService,
		options:         options,
		now:             time.Now,
	}
}

// Resolve finds the event a free-text description refers to across every readable calendar.
// The provider's text search is tried first; when it yields no confident match every event in
// the window is scored. Match is nil when nothing clears the match threshold, and Candidates
// then lists the closest events for disambiguation.
func (r *EventResolver) Resolve(
	ctx context.Context,
	description string,
	timeMin, timeMax *time.Time,
) (*models.ResolveResult, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, core.NewValidationError("description is required")
	}

	now := r.now()
	windowStart := now.Add(-r.options.DefaultWindow)
	if timeMin != nil {
		windowStart = *timeMin
	}
	windowEnd := now.Add(r.options.DefaultWindow)
	if timeMax != nil {
		windowEnd = *timeMax
	}
	if !windowEnd.After(windowStart) {
		return nil, core.NewValidationError("timeMax must be after timeMin")
	}

	log.Printf("📋 Starting to resolve event from description %q", description)

	calendars, err := r.calendarService.ListCalendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	searched, err := r.collect(ctx, calendars, windowStart, windowEnd, description, description)
	if err != nil {
		return nil, err
	}
	if result := r.rank(searched, models.ResolveStrategySearchAssisted); result.Match != nil {
		log.Printf("📋 Completed successfully - resolved %q to event %s via search", description, result.Match.ID)
		return result, nil
	}

	listed, err := r.collect(ctx, calendars, windowStart, windowEnd, description, "")
	if err != nil {
		return nil, err
	}
	result := r.rank(mergeScored(searched, listed), models.ResolveStrategyExhaustive)
	if result.Match != nil {
		log.Printf("📋 Completed successfully - resolved %q to event %s via exhaustive scan", description, result.Match.ID)
	} else {
		log.Printf("📋 Completed successfully - no confident match for %q, %d candidates", description, len(result.Candidates))
	}
	return result, nil
}

// collect lists (optionally text-filtered by searchQuery) and scores the events of every calendar
// concurrently. Calendars that fail for reasons other than a broken credential are skipped.
func (r *EventResolver) collect(
	ctx context.Context,
	calendars []models.Calendar,
	timeMin, timeMax time.Time,
	description, searchQuery string,
) ([]models.ResolvedEvent, error) {
	perCalendar := make([][]models.ResolvedEvent, len(calendars))

	g, gctx := errgroup.WithContext(ctx)
	if r.options.MaxConcurrency > 0 {
		g.SetLimit(r.options.MaxConcurrency)
	}
	for i, cal := range calendars {
		g.Go(func() error {
			events, err := r.calendarService.ListEvents(gctx, models.ListEventsParams{
				CalendarID: cal.ID,
				TimeMin:    &timeMin,
				TimeMax:    &timeMax,
				MaxResults: r.options.PerCalendarLimit,
				Query:      searchQuery,
			})
			if err != nil {
				if core.IsReconnectError(err) {
					return err
				}
				log.Printf("⚠️ Skipping calendar %s while resolving: %v", cal.ID, err)
				return nil
			}

			scored := make([]models.ResolvedEvent, 0, len(events))
			for _, event := range events {
				if event.Status == eventStatusCancelled {
					continue
				}
				scored = append(scored, models.ResolvedEvent{
					ID:           event.ID,
					Summary:      event.Summary,
					Start:        event.Start,
					End:          event.End,
					CalendarID:   cal.ID,
					CalendarName: cal.Summary,
					Confidence:   r.options.Score(description, event.Summary),
				})
			}
			perCalendar[i] = scored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list events while resolving: %w", err)
	}

	var all []models.ResolvedEvent
	for _, scored := range perCalendar {
		all = append(all, scored...)
	}
	return all, nil
}

// rank orders events by confidence and keeps those above the candidate threshold
func (r *EventResolver) rank(scored []models.ResolvedEvent, strategy models.ResolveStrategy) *models.ResolveResult {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Confidence != scored[j].Confidence {
			return scored[i].Confidence > scored[j].Confidence
		}
		if !scored[i].Start.Equal(scored[j].Start) {
			return scored[i].Start.Before(scored[j].Start)
		}
		return scored[i].ID < scored[j].ID
	})

	candidates := []models.ResolvedEvent{}
	for _, event := range scored {
		if event.Confidence < r.options.CandidateThreshold || len(candidates) >= r.options.MaxCandidates {
			break
		}
		candidates = append(candidates, event)
	}

	result := &models.ResolveResult{Candidates: candidates, Strategy: strategy}
	if len(candidates) > 0 && candidates[0].Confidence >= r.options.MatchThreshold {
		match := candidates[0]
		result.Match = &match
	}
	return result
}

func mergeScored(groups ...[]models.ResolvedEvent) []models.ResolvedEvent {
	seen := map[string]bool{}
	var merged []models.ResolvedEvent
	for _, group := range groups {
		for _, event := range group {
			key := event.CalendarID + "\x00" + event.ID
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, event)
		}
	}
	return merged
}
