package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"assistbackend/config"
	"assistbackend/core"
	"assistbackend/models"
	"assistbackend/observability"
	"assistbackend/services"
	"assistbackend/services/availability"
)

const (
	DefaultListWindow     = 7 * 24 * time.Hour
	DefaultMaxResults     = 25
	MaxMaxResults         = 100
	calendarListPageSize  = 250
	maxResponseBodyBytes  = 4 << 20
	defaultRequestTimeout = 30 * time.Second
)

type CalendarClient struct {
	tokenManager        services.TokenManager
	connectionsRepo     services.ConnectionsRepository
	configMutator       services.ConfigMutator
	httpClient          *http.Client
	baseURL             string
	managedCalendarName string
	metrics             *observability.Metrics
	now                 func() time.Time
}

func NewCalendarClient(
	tokenManager services.TokenManager,
	connectionsRepo services.ConnectionsRepository,
	configMutator services.ConfigMutator,
	googleConfig config.GoogleCalendarConfig,
	metrics *observability.Metrics,
) *CalendarClient {
	timeout := googleConfig.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	baseURL := googleConfig.APIBaseURL
	if baseURL == "" {
		baseURL = config.DefaultGoogleCalendarAPIURL
	}
	managedCalendarName := googleConfig.ManagedCalendarName
	if managedCalendarName == "" {
		managedCalendarName = config.DefaultManagedCalendarName
	}

	return &CalendarClient{
		tokenManager:        tokenManager,
		connectionsRepo:     connectionsRepo,
		configMutator:       configMutator,
		httpClient:          &http.Client{Timeout: timeout},
		baseURL:             trimTrailingSlash(baseURL),
		managedCalendarName: managedCalendarName,
		metrics:             metrics,
		now:                 time.Now,
	}
}

type requestOptions struct {
	retryOnUnauthorized bool
	healthCheck         bool
}

// RequestOption tweaks a single Request call
type RequestOption func(*requestOptions)

// WithoutUnauthorizedRetry makes a 401 fail immediately instead of refreshing the token once
func WithoutUnauthorizedRetry() RequestOption {
	return func(o *requestOptions) {
		o.retryOnUnauthorized = false
	}
}

func forHealthCheck() RequestOption {
	return func(o *requestOptions) {
		o.healthCheck = true
	}
}

// Request performs an authenticated call against the calendar API and decodes the JSON response into out.
// A 401 triggers exactly one token refresh and retry. Any other non-2xx becomes a *core.ProviderError.
func (c *CalendarClient) Request(
	ctx context.Context,
	method, path string,
	query url.Values,
	body any,
	out any,
	opts ...RequestOption,
) error {
	options := requestOptions{retryOnUnauthorized: true}
	for _, opt := range opts {
		opt(&options)
	}

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body for %s %s: %w", method, path, err)
		}
		payload = encoded
	}

	var authCtx *models.CalendarAuthContext
	var err error
	if options.healthCheck {
		authCtx, err = c.tokenManager.GetCheckContext(ctx)
	} else {
		authCtx, err = c.tokenManager.GetValidContext(ctx)
	}
	if err != nil {
		return err
	}

	status, respBody, err := c.do(ctx, authCtx.AccessToken, method, path, query, payload)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && options.retryOnUnauthorized {
		log.Printf("🔄 Calendar API answered 401 for %s %s, refreshing the access token once", method, path)
		authCtx, err = c.tokenManager.Refresh(ctx, authCtx)
		if err != nil {
			return fmt.Errorf("failed to refresh calendar token after 401: %w", err)
		}
		status, respBody, err = c.do(ctx, authCtx.AccessToken, method, path, query, payload)
		if err != nil {
			return err
		}
	}

	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", core.ErrNotConnected, parseProviderErrorMessage(status, respBody))
	}
	if status < 200 || status >= 300 {
		return &core.ProviderError{StatusCode: status, Message: parseProviderErrorMessage(status, respBody)}
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode calendar API response for %s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *CalendarClient) do(
	ctx context.Context,
	accessToken, method, path string,
	query url.Values,
	payload []byte,
) (int, []byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request for %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveProviderRequest(method, "error", time.Since(start))
		return 0, nil, &core.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	c.metrics.ObserveProviderRequest(method, statusClass(resp.StatusCode), time.Since(start))
	if err != nil {
		return 0, nil, &core.TransportError{Op: method + " " + path, Err: err}
	}
	return resp.StatusCode, respBody, nil
}

// ListEvents lists single (expanded) events ordered by start time
func (c *CalendarClient) ListEvents(ctx context.Context, params models.ListEventsParams) ([]models.CalendarEvent, error) {
	calendarID, err := c.readCalendarID(ctx, params.CalendarID)
	if err != nil {
		return nil, err
	}

	timeMin := c.now()
	if params.TimeMin != nil {
		timeMin = *params.TimeMin
	}
	timeMax := timeMin.Add(DefaultListWindow)
	if params.TimeMax != nil {
		timeMax = *params.TimeMax
	}
	if !timeMax.After(timeMin) {
		return nil, core.NewValidationError("timeMax must be after timeMin")
	}

	query := url.Values{}
	query.Set("timeMin", formatTime(timeMin))
	query.Set("timeMax", formatTime(timeMax))
	query.Set("maxResults", strconv.Itoa(ClampMaxResults(params.MaxResults)))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	if params.Query != "" {
		query.Set("q", params.Query)
	}

	var response eventListResponse
	if err := c.Request(ctx, http.MethodGet, eventsPath(calendarID), query, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to list events of calendar %s: %w", calendarID, err)
	}

	events := make([]models.CalendarEvent, 0, len(response.Items))
	dropped := 0
	for _, item := range response.Items {
		event, ok := normalizeEvent(item, calendarID)
		if !ok {
			dropped++
			continue
		}
		events = append(events, event)
	}
	if dropped > 0 {
		log.Printf("⚠️ Dropped %d malformed events from calendar %s", dropped, calendarID)
	}
	return events, nil
}

func (c *CalendarClient) GetEvent(ctx context.Context, calendarID, eventID string) (*models.CalendarEvent, error) {
	if eventID == "" {
		return nil, core.NewValidationError("event id is required")
	}
	calendarID, err := c.readCalendarID(ctx, calendarID)
	if err != nil {
		return nil, err
	}

	var item eventResource
	if err := c.Request(ctx, http.MethodGet, eventPath(calendarID, eventID), nil, nil, &item); err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventID, err)
	}
	return normalizeEventOrError(item, calendarID)
}

// ListCalendars returns every calendar whose events the user can read
func (c *CalendarClient) ListCalendars(ctx context.Context) ([]models.Calendar, error) {
	return c.listCalendars(ctx)
}

func (c *CalendarClient) listCalendars(ctx context.Context, opts ...RequestOption) ([]models.Calendar, error) {
	calendars := []models.Calendar{}
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("maxResults", strconv.Itoa(calendarListPageSize))
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}

		var response calendarListResponse
		if err := c.Request(ctx, http.MethodGet, "/users/me/calendarList", query, nil, &response, opts...); err != nil {
			return nil, fmt.Errorf("failed to list calendars: %w", err)
		}

		for _, entry := range response.Items {
			if entry.ID == "" || entry.AccessRole == accessRoleFreeBusyReader {
				continue
			}
			calendars = append(calendars, entry.toModel())
		}

		if response.NextPageToken == "" {
			return calendars, nil
		}
		pageToken = response.NextPageToken
	}
}

// CreateEvent creates an event, on the managed calendar unless a calendar is given
func (c *CalendarClient) CreateEvent(ctx context.Context, params models.CreateEventParams) (*models.CalendarEvent, error) {
	if params.Summary == "" {
		return nil, core.NewValidationError("summary is required")
	}
	if params.Start.IsZero() || params.End.IsZero() {
		return nil, core.NewValidationError("start and end are required")
	}
	if !params.End.After(params.Start) {
		return nil, core.NewValidationError("end must be after start")
	}

	calendarID, err := c.writeCalendarID(ctx, params.CalendarID)
	if err != nil {
		return nil, err
	}

	log.Printf("📋 Starting to create event %q on calendar %s", params.Summary, calendarID)
	body := eventResource{
		Summary:     params.Summary,
		Description: params.Description,
		Location:    params.Location,
		Start:       &eventDateTime{DateTime: formatTime(params.Start), TimeZone: params.TimeZone},
		End:         &eventDateTime{DateTime: formatTime(params.End), TimeZone: params.TimeZone},
	}

	var created eventResource
	if err := c.Request(ctx, http.MethodPost, eventsPath(calendarID), nil, body, &created); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	event, err := normalizeEventOrError(created, calendarID)
	if err != nil {
		return nil, err
	}
	log.Printf("📋 Completed successfully - created event %s", event.ID)
	return event, nil
}

// UpdateEvent patches the given fields of an event
func (c *CalendarClient) UpdateEvent(ctx context.Context, params models.UpdateEventParams) (*models.CalendarEvent, error) {
	if params.EventID == "" {
		return nil, core.NewValidationError("event id is required")
	}
	if params.FieldCount() == 0 {
		return nil, core.NewValidationError("at least one field must be provided to update an event")
	}
	if params.Start != nil && params.End != nil && !params.End.After(*params.Start) {
		return nil, core.NewValidationError("end must be after start")
	}

	calendarID, err := c.writeCalendarID(ctx, params.CalendarID)
	if err != nil {
		return nil, err
	}

	// Moving only one edge must still leave a valid interval
	if (params.Start == nil) != (params.End == nil) {
		current, err := c.GetEvent(ctx, calendarID, params.EventID)
		if err != nil {
			return nil, err
		}
		start, end := current.Start, current.End
		if params.Start != nil {
			start = *params.Start
		}
		if params.End != nil {
			end = *params.End
		}
		if !end.After(start) {
			return nil, core.NewValidationError("end must be after start")
		}
	}

	log.Printf("📋 Starting to update event %s on calendar %s", params.EventID, calendarID)
	patch := map[string]any{}
	if params.Summary != nil {
		patch["summary"] = *params.Summary
	}
	if params.Description != nil {
		patch["description"] = *params.Description
	}
	if params.Location != nil {
		patch["location"] = *params.Location
	}
	if params.Start != nil {
		patch["start"] = eventDateTime{DateTime: formatTime(*params.Start)}
	}
	if params.End != nil {
		patch["end"] = eventDateTime{DateTime: formatTime(*params.End)}
	}

	var updated eventResource
	if err := c.Request(ctx, http.MethodPatch, eventPath(calendarID, params.EventID), nil, patch, &updated); err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", params.EventID, err)
	}

	event, err := normalizeEventOrError(updated, calendarID)
	if err != nil {
		return nil, err
	}
	log.Printf("📋 Completed successfully - updated event %s", event.ID)
	return event, nil
}

func (c *CalendarClient) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	if eventID == "" {
		return core.NewValidationError("event id is required")
	}
	calendarID, err := c.writeCalendarID(ctx, calendarID)
	if err != nil {
		return err
	}

	log.Printf("📋 Starting to delete event %s from calendar %s", eventID, calendarID)
	if err := c.Request(ctx, http.MethodDelete, eventPath(calendarID, eventID), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	log.Printf("📋 Completed successfully - deleted event %s", eventID)
	return nil
}

// GetAvailability queries free/busy for one calendar and derives the free slots
func (c *CalendarClient) GetAvailability(
	ctx context.Context,
	params models.AvailabilityParams,
) (*models.CalendarAvailability, error) {
	calendarID, err := c.readCalendarID(ctx, params.CalendarID)
	if err != nil {
		return nil, err
	}

	timeMin := c.now()
	if params.TimeMin != nil {
		timeMin = *params.TimeMin
	}
	timeMax := timeMin.Add(DefaultListWindow)
	if params.TimeMax != nil {
		timeMax = *params.TimeMax
	}
	if !timeMax.After(timeMin) {
		return nil, core.NewValidationError("timeMax must be after timeMin")
	}
	durationMinutes := params.DurationMinutes
	if durationMinutes == 0 {
		durationMinutes = availability.DefaultDurationMinutes
	}
	durationMinutes = availability.ClampDurationMinutes(durationMinutes)

	body := freeBusyRequest{
		TimeMin: formatTime(timeMin),
		TimeMax: formatTime(timeMax),
		Items:   []freeBusyItem{{ID: calendarID}},
	}
	var response freeBusyResponse
	if err := c.Request(ctx, http.MethodPost, "/freeBusy", nil, body, &response); err != nil {
		return nil, fmt.Errorf("failed to query free/busy for calendar %s: %w", calendarID, err)
	}

	entry := response.Calendars[calendarID]
	if len(entry.Errors) > 0 {
		return nil, &core.ProviderError{
			StatusCode: http.StatusBadGateway,
			Message:    fmt.Sprintf("free/busy unavailable for calendar %s: %s", calendarID, entry.Errors[0].Reason),
		}
	}

	busy := make([]models.TimeInterval, 0, len(entry.Busy))
	for _, period := range entry.Busy {
		start, errStart := time.Parse(time.RFC3339, period.Start)
		end, errEnd := time.Parse(time.RFC3339, period.End)
		if errStart != nil || errEnd != nil {
			continue
		}
		busy = append(busy, models.TimeInterval{Start: start, End: end})
	}

	return &models.CalendarAvailability{
		CalendarID: calendarID,
		TimeMin:    timeMin,
		TimeMax:    timeMax,
		Busy:       availability.MergeIntervals(busy),
		FreeSlots:  availability.CalculateFreeSlots(busy, timeMin, timeMax, durationMinutes),
	}, nil
}

// CheckHealth lists calendars with the stored credential and records the outcome on the connection.
// A failed check is reported through the returned connection's status and LastError, not as an error.
func (c *CalendarClient) CheckHealth(ctx context.Context) (*models.IntegrationConnection, error) {
	log.Printf("📋 Starting to check calendar connection health")

	conn, err := c.loadCalendarConnection(ctx)
	if err != nil {
		return nil, err
	}
	if conn.Status == models.ConnectionStatusDisconnected || !conn.HasAccessToken() {
		return nil, fmt.Errorf("calendar connection has no credential to check: %w", core.ErrNotConnected)
	}

	calendars, checkErr := c.listCalendars(ctx, forHealthCheck())

	// Reload so a token refresh made during the check is not overwritten
	conn, err = c.loadCalendarConnection(ctx)
	if err != nil {
		return nil, err
	}

	checkedAt := c.now().UTC()
	conn.LastCheckedAt = &checkedAt
	if checkErr != nil {
		message := checkErr.Error()
		conn.Status = models.ConnectionStatusError
		conn.LastError = &message
		log.Printf("❌ Calendar health check failed: %v", checkErr)
	} else {
		conn.Status = models.ConnectionStatusConnected
		conn.LastError = nil
		if primary, ok := primaryCalendar(calendars); ok {
			accountID, label := primary.ID, primary.Summary
			conn.ExternalAccountID = &accountID
			conn.ExternalAccountLabel = &label
		}
	}

	if err := c.connectionsRepo.UpdateConnectionState(ctx, conn); err != nil {
		return nil, fmt.Errorf("failed to record calendar health check: %w", err)
	}

	if checkErr == nil {
		log.Printf("📋 Completed successfully - calendar connection is healthy (%d calendars)", len(calendars))
	}
	return conn, nil
}

func (c *CalendarClient) loadCalendarConnection(ctx context.Context) (*models.IntegrationConnection, error) {
	maybeConn, err := c.connectionsRepo.GetConnectionByProvider(ctx, models.ProviderCalendar)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar connection: %w", err)
	}
	if !maybeConn.IsPresent() {
		return nil, fmt.Errorf("calendar connection does not exist: %w", core.ErrNotConnected)
	}
	return maybeConn.MustGet(), nil
}

// readCalendarID falls back to the connection's configured calendar (primary by default)
func (c *CalendarClient) readCalendarID(ctx context.Context, calendarID string) (string, error) {
	if calendarID != "" {
		return calendarID, nil
	}
	authCtx, err := c.tokenManager.GetValidContext(ctx)
	if err != nil {
		return "", err
	}
	return authCtx.CalendarID, nil
}

func (c *CalendarClient) writeCalendarID(ctx context.Context, calendarID string) (string, error) {
	if calendarID != "" {
		return calendarID, nil
	}
	return c.ManagedCalendarID(ctx)
}

// ManagedCalendarID returns the id of the calendar writes default to. The id is read from the
// connection config; on first use the calendar is found by exact name or created, and the id is
// stored with a conditional write. When two callers race, the id that was stored first wins.
func (c *CalendarClient) ManagedCalendarID(ctx context.Context) (string, error) {
	maybeConn, err := c.connectionsRepo.GetConnectionByProvider(ctx, models.ProviderCalendar)
	if err != nil {
		return "", fmt.Errorf("failed to load calendar connection: %w", err)
	}
	if maybeConn.IsPresent() {
		if stored := maybeConn.MustGet().Config.String(models.ConfigKeyManagedCalendarID); stored != "" {
			return stored, nil
		}
	}

	log.Printf("📋 Starting to resolve managed calendar %q", c.managedCalendarName)
	calendars, err := c.ListCalendars(ctx)
	if err != nil {
		return "", err
	}

	calendarID := ""
	for _, cal := range calendars {
		if cal.Summary == c.managedCalendarName && isWritableRole(cal.AccessRole) {
			calendarID = cal.ID
			break
		}
	}

	if calendarID == "" {
		var created calendarListEntry
		body := map[string]string{"summary": c.managedCalendarName}
		if err := c.Request(ctx, http.MethodPost, "/calendars", nil, body, &created); err != nil {
			return "", fmt.Errorf("failed to create managed calendar: %w", err)
		}
		if created.ID == "" {
			return "", &core.ProviderError{StatusCode: http.StatusBadGateway, Message: "created calendar has no id"}
		}
		calendarID = created.ID
		log.Printf("✅ Created managed calendar %q (%s)", c.managedCalendarName, calendarID)
	}

	resolved := calendarID
	err = c.configMutator.MutateConfig(ctx, models.ProviderCalendar, func(cfg models.ConnectionConfig) bool {
		if stored := cfg.String(models.ConfigKeyManagedCalendarID); stored != "" {
			resolved = stored
			return false
		}
		resolved = calendarID
		cfg[models.ConfigKeyManagedCalendarID] = calendarID
		return true
	})
	if err != nil {
		// The calendar exists either way; the next write resolves it again
		log.Printf("⚠️ Failed to persist managed calendar id: %v", err)
		return calendarID, nil
	}

	if resolved != calendarID {
		log.Printf("⚠️ Managed calendar was resolved concurrently, using stored id %s", resolved)
	}
	log.Printf("📋 Completed successfully - managed calendar is %s", resolved)
	return resolved, nil
}

// ClampMaxResults applies the list default and bounds it to [1, MaxMaxResults]
func ClampMaxResults(maxResults int) int {
	if maxResults == 0 {
		return DefaultMaxResults
	}
	if maxResults < 1 {
		return 1
	}
	if maxResults > MaxMaxResults {
		return MaxMaxResults
	}
	return maxResults
}

func primaryCalendar(calendars []models.Calendar) (models.Calendar, bool) {
	for _, cal := range calendars {
		if cal.Primary {
			return cal, true
		}
	}
	return models.Calendar{}, false
}

func statusClass(statusCode int) string {
	return fmt.Sprintf("%dxx", statusCode/100)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func eventsPath(calendarID string) string {
	return fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))
}

func eventPath(calendarID, eventID string) string {
	return fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(eventID))
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
