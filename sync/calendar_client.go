// ABOUTME: Google Calendar gateway for the managed fitness calendar
// ABOUTME: Event insert/update/delete and find-or-create of the calendar by name
package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	gosync "sync"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/harperreed/fitsync/models"
)

// DefaultCalendarName is the display name of the managed calendar.
const DefaultCalendarName = "Fitness Sync"

// GoogleCalendar implements CalendarGateway with a bearer token per call.
type GoogleCalendar struct {
	opts []option.ClientOption
}

// NewGoogleCalendar accepts extra client options, appended after the token
// source (tests pass an endpoint and HTTP client).
func NewGoogleCalendar(opts ...option.ClientOption) *GoogleCalendar {
	return &GoogleCalendar{opts: opts}
}

// NewCalendarClient creates a Google Calendar API service from an access token.
func (g *GoogleCalendar) NewCalendarClient(ctx context.Context, token string) (*calendar.Service, error) {
	if token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, g.opts...)

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return service, nil
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, token, calendarID string, ev models.FormattedEvent) (string, error) {
	svc, err := g.NewCalendarClient(ctx, token)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(calendarID, toCalendarEvent(ev)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}
	return created.Id, nil
}

func (g *GoogleCalendar) UpdateEvent(ctx context.Context, token, calendarID, eventID string, ev models.FormattedEvent) error {
	svc, err := g.NewCalendarClient(ctx, token)
	if err != nil {
		return err
	}
	if _, err := svc.Events.Update(calendarID, eventID, toCalendarEvent(ev)).Context(ctx).Do(); err != nil {
		return wrapEventError("update", eventID, err)
	}
	return nil
}

func (g *GoogleCalendar) DeleteEvent(ctx context.Context, token, calendarID, eventID string) error {
	svc, err := g.NewCalendarClient(ctx, token)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return wrapEventError("delete", eventID, err)
	}
	return nil
}

// FindOrCreateCalendar returns the id of the calendar with the given
// summary, creating it when the account has none.
func (g *GoogleCalendar) FindOrCreateCalendar(ctx context.Context, token, name string) (string, error) {
	svc, err := g.NewCalendarClient(ctx, token)
	if err != nil {
		return "", err
	}

	pageToken := ""
	for {
		call := svc.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return "", fmt.Errorf("failed to list calendars: %w", err)
		}
		for _, item := range list.Items {
			if item.Summary == name {
				return item.Id, nil
			}
		}
		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	created, err := svc.Calendars.Insert(&calendar.Calendar{Summary: name, TimeZone: "UTC"}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create calendar %q: %w", name, err)
	}
	return created.Id, nil
}

func toCalendarEvent(ev models.FormattedEvent) *calendar.Event {
	return &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.DateTime, TimeZone: ev.Start.TimeZone},
		End:         &calendar.EventDateTime{DateTime: ev.End.DateTime, TimeZone: ev.End.TimeZone},
	}
}

func wrapEventError(op, eventID string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return fmt.Errorf("%s event %s: %w", op, eventID, ErrEventGone)
	}
	return fmt.Errorf("failed to %s event %s: %w", op, eventID, err)
}

// CalendarResolver caches the managed calendar id for the life of the process.
type CalendarResolver struct {
	gateway CalendarGateway
	name    string

	mu gosync.Mutex
	id string
}

func NewCalendarResolver(gateway CalendarGateway, name string) *CalendarResolver {
	if name == "" {
		name = DefaultCalendarName
	}
	return &CalendarResolver{gateway: gateway, name: name}
}

func (r *CalendarResolver) CalendarID(ctx context.Context, token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.id != "" {
		return r.id, nil
	}
	id, err := r.gateway.FindOrCreateCalendar(ctx, token, r.name)
	if err != nil {
		return "", err
	}
	r.id = id
	return id, nil
}
