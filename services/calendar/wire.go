package calendar

import (
	"net/http"
	"time"

	"assistbackend/core"
	"assistbackend/models"
)

const (
	accessRoleFreeBusyReader = "freeBusyReader"
	accessRoleWriter         = "writer"
	accessRoleOwner          = "owner"
	dateLayout               = "2006-01-02"
)

type eventDateTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type eventResource struct {
	ID          string         `json:"id,omitempty"`
	Status      string         `json:"status,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	Start       *eventDateTime `json:"start,omitempty"`
	End         *eventDateTime `json:"end,omitempty"`
}

type eventListResponse struct {
	Items         []eventResource `json:"items"`
	NextPageToken string          `json:"nextPageToken"`
}

type calendarListEntry struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	Primary    bool   `json:"primary"`
	AccessRole string `json:"accessRole"`
	TimeZone   string `json:"timeZone"`
}

func (e calendarListEntry) toModel() models.Calendar {
	return models.Calendar{
		ID:         e.ID,
		Summary:    e.Summary,
		Primary:    e.Primary,
		AccessRole: e.AccessRole,
		TimeZone:   e.TimeZone,
	}
}

type calendarListResponse struct {
	Items         []calendarListEntry `json:"items"`
	NextPageToken string              `json:"nextPageToken"`
}

type freeBusyItem struct {
	ID string `json:"id"`
}

type freeBusyRequest struct {
	TimeMin string         `json:"timeMin"`
	TimeMax string         `json:"timeMax"`
	Items   []freeBusyItem `json:"items"`
}

type freeBusyPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type freeBusyCalendarError struct {
	Domain string `json:"domain"`
	Reason string `json:"reason"`
}

type freeBusyCalendar struct {
	Busy   []freeBusyPeriod        `json:"busy"`
	Errors []freeBusyCalendarError `json:"errors"`
}

type freeBusyResponse struct {
	Calendars map[string]freeBusyCalendar `json:"calendars"`
}

// normalizeEvent maps a provider event to the core shape; events without an id or
// with an unparseable start or end are rejected
func normalizeEvent(item eventResource, calendarID string) (models.CalendarEvent, bool) {
	if item.ID == "" {
		return models.CalendarEvent{}, false
	}
	start, startAllDay, ok := parseEventTime(item.Start)
	if !ok {
		return models.CalendarEvent{}, false
	}
	end, _, ok := parseEventTime(item.End)
	if !ok {
		return models.CalendarEvent{}, false
	}

	return models.CalendarEvent{
		ID:          item.ID,
		Status:      item.Status,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       start,
		End:         end,
		AllDay:      startAllDay,
		CalendarID:  calendarID,
	}, true
}

func normalizeEventOrError(item eventResource, calendarID string) (*models.CalendarEvent, error) {
	event, ok := normalizeEvent(item, calendarID)
	if !ok {
		return nil, &core.ProviderError{
			StatusCode: http.StatusBadGateway,
			Message:    "calendar returned an event without an id or a usable start and end",
		}
	}
	return &event, nil
}

// parseEventTime reads a timed (dateTime) or all-day (date, midnight UTC) boundary
func parseEventTime(value *eventDateTime) (time.Time, bool, bool) {
	if value == nil {
		return time.Time{}, false, false
	}
	if value.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, value.DateTime)
		if err != nil {
			return time.Time{}, false, false
		}
		return parsed, false, true
	}
	if value.Date != "" {
		parsed, err := time.ParseInLocation(dateLayout, value.Date, time.UTC)
		if err != nil {
			return time.Time{}, false, false
		}
		return parsed, true, true
	}
	return time.Time{}, false, false
}

func isWritableRole(accessRole string) bool {
	return accessRole == accessRoleOwner || accessRole == accessRoleWriter
}
