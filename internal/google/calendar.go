package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"meetwith/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	credentialsFile = "credentials.json"
)

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service *calendar.Service
	logger  *slog.Logger
}

// NewClient creates a Google Calendar client authorized with token. When
// config is nil the caller must supply transport options (tests do).
func NewClient(ctx context.Context, logger *slog.Logger, config *oauth2.Config, token *oauth2.Token, opts ...option.ClientOption) (*CalendarClient, error) {
	if config != nil {
		if token == nil {
			return nil, errors.New("google: missing oauth token")
		}
		opts = append([]option.ClientOption{option.WithHTTPClient(config.Client(ctx, token))}, opts...)
	}

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarClient{service: service, logger: logger}, nil
}

// UpdateEvent patches the event. Guests are notified only when the request
// carries invitees.
func (c *CalendarClient) UpdateEvent(ctx context.Context, sourceEventID string, req *models.UpdateRequest) error {
	ev, err := asEvent(req.Native)
	if err != nil {
		return err
	}

	sendUpdates := "none"
	if models.HasInvitees(req.Participants) {
		sendUpdates = "all"
	}

	c.logger.Debug("Patching Google event", "calendarID", req.CalendarID, "eventID", sourceEventID, "sendUpdates", sendUpdates)
	_, err = c.service.Events.Patch(req.CalendarID, sourceEventID, ev.Event).
		SendUpdates(sendUpdates).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to patch event %s: %w", sourceEventID, err)
	}
	return nil
}

// GetEvents lists events overlapping [start, end]. Recurring series are
// returned as masters, not expanded instances.
func (c *CalendarClient) GetEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.NativeEvent, error) {
	c.logger.Debug("Fetching events", "calendarID", calendarID, "start", start, "end", end)

	var out []models.NativeEvent
	err := c.service.Events.List(calendarID).
		ShowDeleted(false).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		Context(ctx).
		Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				out = append(out, Event{item})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Info("Fetched events from Google Calendar", "count", len(out), "calendarID", calendarID)
	return out, nil
}

// GetConnectedEmail returns the id of the primary calendar, which is the
// account's email address.
func (c *CalendarClient) GetConnectedEmail(ctx context.Context) (string, error) {
	entry, err := c.service.CalendarList.Get("primary").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get primary calendar: %w", err)
	}
	return entry.Id, nil
}

// ListCalendars finds all calendars associated with the authenticated account.
func (c *CalendarClient) ListCalendars(ctx context.Context) ([]models.CalendarInfo, error) {
	var out []models.CalendarInfo
	err := c.service.CalendarList.List().Context(ctx).Pages(ctx, func(list *calendar.CalendarList) error {
		for _, item := range list.Items {
			out = append(out, models.CalendarInfo{ID: item.Id, Name: item.Summary, Primary: item.Primary})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return out, nil
}

func asEvent(native models.NativeEvent) (Event, error) {
	if ev, ok := native.(Event); ok && ev.Event != nil {
		return ev, nil
	}
	return Event{}, fmt.Errorf("google: unexpected native event %T", native)
}

// OAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes explicit client credentials over a local credentials.json file.
func OAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return config, nil
}

// TokenFromWeb exchanges an authorization code for a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// LoadToken retrieves a token from a local file.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
