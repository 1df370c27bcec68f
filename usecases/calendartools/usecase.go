package calendartools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"assistbackend/core"
	"assistbackend/models"
	"assistbackend/services"
)

// Tool actions exposed to the chat layer
const (
	ActionList         = "list"
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionAvailability = "availability"
	ActionResolve      = "resolve"
)

type listArgs struct {
	CalendarID string     `json:"calendar_id"`
	TimeMin    *time.Time `json:"time_min"`
	TimeMax    *time.Time `json:"time_max"`
	MaxResults int        `json:"max_results"`
	Query      string     `json:"query"`
}

type createArgs struct {
	CalendarID  string    `json:"calendar_id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TimeZone    string    `json:"time_zone"`
}

type updateArgs struct {
	CalendarID  string     `json:"calendar_id"`
	EventID     string     `json:"event_id"`
	Summary     *string    `json:"summary"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
}

type deleteArgs struct {
	CalendarID string `json:"calendar_id"`
	EventID    string `json:"event_id"`
}

type availabilityArgs struct {
	CalendarID      string     `json:"calendar_id"`
	TimeMin         *time.Time `json:"time_min"`
	TimeMax         *time.Time `json:"time_max"`
	DurationMinutes int        `json:"duration_minutes"`
}

type resolveArgs struct {
	Description string     `json:"description"`
	TimeMin     *time.Time `json:"time_min"`
	TimeMax     *time.Time `json:"time_max"`
}

// ListEventsResult is the list action result
type ListEventsResult struct {
	Events []models.CalendarEvent `json:"events"`
}

// EventResult is the create and update action result
type EventResult struct {
	Event *models.CalendarEvent `json:"event"`
}

// DeleteEventResult is the delete action result
type DeleteEventResult struct {
	Deleted bool   `json:"deleted"`
	EventID string `json:"event_id"`
}

// CalendarToolsUseCase dispatches chat tool calls to the calendar client and the event resolver
type CalendarToolsUseCase struct {
	calendarService services.CalendarService
	eventResolver   services.EventResolver
}

// NewCalendarToolsUseCase creates a new calendar tools use case
func NewCalendarToolsUseCase(
	calendarService services.CalendarService,
	eventResolver services.EventResolver,
) *CalendarToolsUseCase {
	return &CalendarToolsUseCase{
		calendarService: calendarService,
		eventResolver:   eventResolver,
	}
}

// Execute runs one tool action with its JSON arguments and returns the typed result
func (u *CalendarToolsUseCase) Execute(ctx context.Context, action string, rawArgs json.RawMessage) (any, error) {
	log.Printf("📋 Starting to execute calendar tool %s", action)

	result, err := u.dispatch(ctx, action, rawArgs)
	if err != nil {
		log.Printf("❌ Calendar tool %s failed: %v", action, err)
		return nil, err
	}

	log.Printf("📋 Completed successfully - executed calendar tool %s", action)
	return result, nil
}

func (u *CalendarToolsUseCase) dispatch(ctx context.Context, action string, rawArgs json.RawMessage) (any, error) {
	switch action {
	case ActionList:
		var args listArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return nil, err
		}
		events, err := u.calendarService.ListEvents(ctx, models.ListEventsParams{
			CalendarID: args.CalendarID,
			TimeMin:    args.TimeMin,
			TimeMax:    args.TimeMax,
			MaxResults: args.MaxResults,
			Query:      args.Query,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		if events == nil {
			events = []models.CalendarEvent{}
		}
		return &ListEventsResult{Events: events}, nil

	case ActionCreate:
		var args createArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return nil, err
		}
		event, err := u.calendarService.CreateEvent(ctx, models.CreateEventParams{
			CalendarID:  args.CalendarID,
			Summary:     args.Summary,
			Description: args.Description,
			Location:    args.Location,
			Start:       args.Start,
			End:         args.End,
			TimeZone:    args.TimeZone,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create event: %w", err)
		}
		return &EventResult{Event: event}, nil

	case ActionUpdate:
		var args updateArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return nil, err
		}
		event, err := u.calendarService.UpdateEvent(ctx, models.UpdateEventParams{
			CalendarID:  args.CalendarID,
			EventID:     args.EventID,
			Summary:     args.Summary,
			Description: args.Description,
			Location:    args.Location,
			Start:       args.Start,
			End:         args.End,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update event: %w", err)
		}
		return &EventResult{Event: event}, nil

	case ActionDelete:
		var args deleteArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return nil, err
		}
		if err := u.calendarService.DeleteEvent(ctx, args.CalendarID, args.EventID); err != nil {
			return nil, fmt.Errorf("failed to delete event: %w", err)
		}
		return &DeleteEventResult{Deleted: true, EventID: args.EventID}, nil

	case ActionAvailability:
		var args availabilityArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return nil, err
		}
		availability, err := u.calendarService.GetAvailability(ctx, models.AvailabilityParams{
			CalendarID:      args.CalendarID,
			TimeMin:         args.TimeMin,
			TimeMax:         args.TimeMax,
			DurationMinutes: args.DurationMinutes,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get availability: %w", err)
		}
		return availability, nil

	case ActionResolve:
		var args resolveArgs
		if err := decodeArgs(rawArgs, &args); err != nil {
			return nil, err
		}
		result, err := u.eventResolver.Resolve(ctx, args.Description, args.TimeMin, args.TimeMax)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve event: %w", err)
		}
		return result, nil
	}

	return nil, core.NewValidationError("unknown calendar tool action: %s", action)
}

// decodeArgs accepts an empty body as "no arguments"; unknown fields are rejected so typos surface to the caller
func decodeArgs(rawArgs json.RawMessage, out any) error {
	trimmed := bytes.TrimSpace(rawArgs)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return core.NewValidationError("invalid tool arguments: %v", err)
	}
	return nil
}
