// Package gcal publishes executed plan sessions to Google Calendar.
package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Private extended property keys set on every exported event.
const (
	PropTaskID  = "cadence_task_id"
	PropPlanID  = "cadence_plan_id"
	PropSession = "cadence_session"
)

// Exporter writes plan entries as calendar events. Event IDs are derived
// from the plan, task and session number, so exporting the same plan again
// does not create duplicates.
type Exporter struct {
	service    *calendar.Service
	calendarID string
}

// NewFromCredentialsFile builds an exporter from a service account key, or
// from installed-app OAuth client credentials plus a saved token at
// tokenPath.
func NewFromCredentialsFile(ctx context.Context, credentialsPath, tokenPath, calendarID string) (*Exporter, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("reading calendar credentials: %w", err)
	}
	ts, err := tokenSource(ctx, data, tokenPath)
	if err != nil {
		return nil, err
	}
	return New(ctx, calendarID, option.WithTokenSource(ts))
}

// NewWithHTTPClient builds an exporter on a pre-authorized client.
func NewWithHTTPClient(ctx context.Context, client *http.Client, calendarID string, opts ...option.ClientOption) (*Exporter, error) {
	return New(ctx, calendarID, append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)...)
}

func New(ctx context.Context, calendarID string, opts ...option.ClientOption) (*Exporter, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Exporter{service: svc, calendarID: calendarID}, nil
}

func tokenSource(ctx context.Context, credentials []byte, tokenPath string) (oauth2.TokenSource, error) {
	if jwt, err := google.JWTConfigFromJSON(credentials, calendar.CalendarEventsScope); err == nil {
		return jwt.TokenSource(ctx), nil
	}

	cfg, err := google.ConfigFromJSON(credentials, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unsupported calendar credentials: %w", err)
	}
	if tokenPath == "" {
		return nil, errors.New("installed-app calendar credentials need a token file")
	}
	raw, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("reading calendar token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("parsing calendar token: %w", err)
	}
	return cfg.TokenSource(ctx, &tok), nil
}

// Export inserts one event per plan entry and returns how many are present
// in the calendar afterwards. It stops at the first failure.
func (e *Exporter) Export(ctx context.Context, plan *domain.Plan, loc *time.Location) (int, error) {
	if loc == nil {
		loc = time.UTC
	}
	exported := 0
	for _, entry := range plan.Entries {
		ev := toEvent(plan.ID, entry, loc)
		_, err := e.service.Events.Insert(e.calendarID, ev).Context(ctx).Do()
		if err != nil && !isDuplicate(err) {
			return exported, fmt.Errorf("exporting %s session %d: %w", entry.TaskID, entry.Session, err)
		}
		exported++
	}
	return exported, nil
}

func toEvent(planID string, entry domain.PlanEntry, loc *time.Location) *calendar.Event {
	desc := entry.Rationale
	if entry.Sessions > 1 {
		desc = strings.TrimSpace(fmt.Sprintf("Session %d of %d. %s", entry.Session, entry.Sessions, desc))
	}
	return &calendar.Event{
		Id:          EventID(planID, entry.TaskID, entry.Session),
		Summary:     entry.Title,
		Description: desc,
		Start: &calendar.EventDateTime{
			DateTime: entry.Start.In(loc).Format(time.RFC3339),
			TimeZone: loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: entry.End.In(loc).Format(time.RFC3339),
			TimeZone: loc.String(),
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				PropTaskID:  entry.TaskID,
				PropPlanID:  planID,
				PropSession: strconv.Itoa(entry.Session),
			},
		},
	}
}

// EventID returns the calendar event id for one session. Calendar ids
// allow only base32hex characters, which lower-case hex satisfies.
func EventID(planID, taskID string, session int) string {
	name := planID + "/" + taskID + "/" + strconv.Itoa(session)
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(name))
	return strings.ReplaceAll(id.String(), "-", "")
}

func isDuplicate(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}
