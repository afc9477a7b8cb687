package office365

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"meetwith/internal/models"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const msGraphBaseURL = "https://graph.microsoft.com/v1.0"

var defaultScopes = []string{"offline_access", "User.Read", "Calendars.ReadWrite"}

// CalendarClient talks to Microsoft Graph calendar endpoints.
type CalendarClient struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

// Option configures a CalendarClient.
type Option func(*CalendarClient)

// WithBaseURL points the client at a different Graph root.
func WithBaseURL(base string) Option {
	return func(c *CalendarClient) { c.baseURL = base }
}

// WithHTTPClient replaces the OAuth transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *CalendarClient) { c.http = hc }
}

// NewClient creates a Graph client authorized with token.
func NewClient(ctx context.Context, logger *slog.Logger, config *oauth2.Config, token *oauth2.Token, opts ...Option) (*CalendarClient, error) {
	c := &CalendarClient{baseURL: msGraphBaseURL, logger: logger}
	if config != nil && token != nil {
		c.http = config.Client(ctx, token)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		return nil, fmt.Errorf("office365: missing oauth token")
	}
	return c, nil
}

// OAuthConfig returns the Azure AD OAuth2 config. An empty tenant means
// "common".
func OAuthConfig(clientID, clientSecret, tenant, redirectURL string) *oauth2.Config {
	if tenant == "" {
		tenant = "common"
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       defaultScopes,
		Endpoint:     microsoft.AzureADEndpoint(tenant),
	}
}

// GraphError is a non-2xx Graph response.
type GraphError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GraphError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph: status %d", e.StatusCode)
}

func (c *CalendarClient) eventPath(calendarID, eventID string) string {
	return c.baseURL + "/me/calendars/" + url.PathEscape(calendarID) + "/events/" + url.PathEscape(eventID)
}

// UpdateEvent PATCHes the event.
func (c *CalendarClient) UpdateEvent(ctx context.Context, sourceEventID string, req *models.UpdateRequest) error {
	ev, err := asEvent(req.Native)
	if err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	c.logger.Debug("Patching Graph event", "calendarID", req.CalendarID, "eventID", sourceEventID)
	if err := c.do(ctx, http.MethodPatch, c.eventPath(req.CalendarID, sourceEventID), body, nil); err != nil {
		return fmt.Errorf("failed to update event %s: %w", sourceEventID, err)
	}
	return nil
}

// GetEvents lists single events and series masters overlapping
// [start, end]. Occurrences are not expanded.
func (c *CalendarClient) GetEvents(ctx context.Context, calendarID string, start, end time.Time) ([]models.NativeEvent, error) {
	params := url.Values{}
	params.Set("$filter", fmt.Sprintf("start/dateTime lt '%s' and end/dateTime gt '%s'",
		end.UTC().Format(outlookTimeFormat), start.UTC().Format(outlookTimeFormat)))
	params.Set("$expand", fmt.Sprintf("singleValueExtendedProperties($filter=id eq '%s')", extendedPropertyID))
	params.Set("$top", "100")
	next := c.baseURL + "/me/calendars/" + url.PathEscape(calendarID) + "/events?" + params.Encode()

	var out []models.NativeEvent
	for next != "" {
		var page struct {
			Value    []*Event `json:"value"`
			NextLink string   `json:"@odata.nextLink"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		for _, ev := range page.Value {
			out = append(out, ev)
		}
		next = page.NextLink
	}

	c.logger.Info("Fetched events from Microsoft Graph", "count", len(out), "calendarID", calendarID)
	return out, nil
}

// GetConnectedEmail returns the signed-in user's mail address, falling
// back to the user principal name.
func (c *CalendarClient) GetConnectedEmail(ctx context.Context) (string, error) {
	var me struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/me", nil, &me); err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if me.Mail != "" {
		return me.Mail, nil
	}
	return me.UserPrincipalName, nil
}

// ListCalendars lists all calendars.
func (c *CalendarClient) ListCalendars(ctx context.Context) ([]models.CalendarInfo, error) {
	next := c.baseURL + "/me/calendars"
	var out []models.CalendarInfo
	for next != "" {
		var page struct {
			Value []struct {
				ID                string `json:"id"`
				Name              string `json:"name"`
				IsDefaultCalendar bool   `json:"isDefaultCalendar"`
			} `json:"value"`
			NextLink string `json:"@odata.nextLink"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list calendars: %w", err)
		}
		for _, cal := range page.Value {
			out = append(out, models.CalendarInfo{ID: cal.ID, Name: cal.Name, Primary: cal.IsDefaultCalendar})
		}
		next = page.NextLink
	}
	return out, nil
}

func (c *CalendarClient) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gerr := &GraphError{StatusCode: resp.StatusCode}
		var payload struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if b, _ := io.ReadAll(resp.Body); len(b) > 0 && json.Unmarshal(b, &payload) == nil {
			gerr.Code, gerr.Message = payload.Error.Code, payload.Error.Message
		}
		return gerr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
