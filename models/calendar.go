package models

import "time"

// CalendarAuthContext is what the token manager hands to the calendar client
type CalendarAuthContext struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	CalendarID   string
	ClientID     string
	ClientSecret string
}

// Calendar is one entry of the user's calendar list
type Calendar struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	Primary    bool   `json:"primary"`
	AccessRole string `json:"access_role,omitempty"`
	TimeZone   string `json:"time_zone,omitempty"`
}

// CalendarEvent is a provider event normalized to the fields the core works with
type CalendarEvent struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day,omitempty"`
	CalendarID  string    `json:"calendar_id,omitempty"`
}

// ListEventsParams holds the optional filters of a list call; zero values mean "use defaults"
type ListEventsParams struct {
	CalendarID string
	TimeMin    *time.Time
	TimeMax    *time.Time
	MaxResults int
	Query      string
}

// CreateEventParams describes a new event
type CreateEventParams struct {
	CalendarID  string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

// UpdateEventParams is a patch; nil fields are left unchanged
type UpdateEventParams struct {
	CalendarID  string
	EventID     string
	Summary     *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
}

// FieldCount returns how many patch fields are set
func (p UpdateEventParams) FieldCount() int {
	count := 0
	for _, set := range []bool{p.Summary != nil, p.Description != nil, p.Location != nil, p.Start != nil, p.End != nil} {
		if set {
			count++
		}
	}
	return count
}

// AvailabilityParams holds the optional inputs of an availability query
type AvailabilityParams struct {
	CalendarID      string
	TimeMin         *time.Time
	TimeMax         *time.Time
	DurationMinutes int
}

// TimeInterval is a half-open [Start, End) interval
type TimeInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start
func (i TimeInterval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether two half-open intervals share any instant
func (i TimeInterval) Overlaps(other TimeInterval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// CalendarAvailability is the busy/free picture of one calendar over a window
type CalendarAvailability struct {
	CalendarID string         `json:"calendar_id"`
	TimeMin    time.Time      `json:"time_min"`
	TimeMax    time.Time      `json:"time_max"`
	Busy       []TimeInterval `json:"busy"`
	FreeSlots  []TimeInterval `json:"free_slots"`
}

// ResolvedEvent is an event matched from a free-text description
type ResolvedEvent struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	CalendarID   string    `json:"calendar_id"`
	CalendarName string    `json:"calendar_name"`
	Confidence   float64   `json:"confidence"`
}

type ResolveStrategy string

const (
	ResolveStrategySearchAssisted ResolveStrategy = "search_assisted"
	ResolveStrategyExhaustive     ResolveStrategy = "exhaustive"
)

// ResolveResult carries the best match (nil when not confident) and ranked candidates
type ResolveResult struct {
	Match      *ResolvedEvent  `json:"match"`
	Candidates []ResolvedEvent `json:"candidates"`
	Strategy   ResolveStrategy `json:"strategy"`
}
