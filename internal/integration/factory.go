package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"meetwith/internal/caldav"
	"meetwith/internal/config"
	"meetwith/internal/google"
	"meetwith/internal/models"
	"meetwith/internal/office365"
	"meetwith/internal/registry"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

var errNoIntegration = errors.New("mww events have no external calendar integration")

// Payload is the credential blob stored with a connection. OAuth providers
// use Token; CalDAV uses URL, Username and Password; webcal uses URL.
type Payload struct {
	Token    *oauth2.Token `json:"token,omitempty"`
	URL      string        `json:"url,omitempty"`
	Username string        `json:"username,omitempty"`
	Password string        `json:"password,omitempty"`
}

// EncodePayload marshals p for storage on a ConnectedCalendar.
func EncodePayload(p Payload) (json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return b, nil
}

// Factory builds provider clients for connected calendars. Clients are
// created per call; circuit breakers are shared per provider.
type Factory struct {
	cfg      *config.Config
	logger   *slog.Logger
	breakers map[models.Provider]*gobreaker.CircuitBreaker

	googleOpts []option.ClientOption
	officeOpts []office365.Option
	httpClient *http.Client
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithGoogleOptions adds client options to every Google client.
func WithGoogleOptions(opts ...option.ClientOption) FactoryOption {
	return func(f *Factory) { f.googleOpts = append(f.googleOpts, opts...) }
}

// WithOffice365Options adds options to every Graph client.
func WithOffice365Options(opts ...office365.Option) FactoryOption {
	return func(f *Factory) { f.officeOpts = append(f.officeOpts, opts...) }
}

// WithFeedHTTPClient sets the HTTP client used to download webcal feeds.
func WithFeedHTTPClient(hc *http.Client) FactoryOption {
	return func(f *Factory) { f.httpClient = hc }
}

func NewFactory(cfg *config.Config, logger *slog.Logger, opts ...FactoryOption) *Factory {
	f := &Factory{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[models.Provider]*gobreaker.CircuitBreaker),
	}
	for _, p := range models.Providers {
		if p == models.ProviderMWW {
			continue
		}
		f.breakers[p] = newBreaker(string(p), cfg.BreakerTimeout, logger)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns the integration for conn, keyed by its account, email,
// provider and payload.
func (f *Factory) Client(ctx context.Context, conn *registry.ConnectedCalendar) (models.Client, error) {
	var payload Payload
	if len(conn.Payload) > 0 {
		if err := json.Unmarshal(conn.Payload, &payload); err != nil {
			return nil, fmt.Errorf("invalid %s payload for %s: %w", conn.Provider, conn.Email, err)
		}
	}

	client, err := f.build(ctx, conn.Provider, payload)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("Created calendar integration.", "provider", conn.Provider, "email", conn.Email, "account", conn.AccountAddress)
	return &breakerClient{Client: client, cb: f.breakers[conn.Provider]}, nil
}

func (f *Factory) build(ctx context.Context, provider models.Provider, p Payload) (models.Client, error) {
	switch provider {
	case models.ProviderGoogle:
		if p.Token == nil {
			return nil, errors.New("google: connection has no oauth token")
		}
		oauthConfig, err := google.OAuthConfig(f.cfg.GoogleClientID, f.cfg.GoogleClientSecret)
		if err != nil {
			return nil, err
		}
		return google.NewClient(ctx, f.logger, oauthConfig, p.Token, f.googleOpts...)

	case models.ProviderOffice:
		if p.Token == nil {
			return nil, errors.New("office365: connection has no oauth token")
		}
		oauthConfig := office365.OAuthConfig(f.cfg.MicrosoftClientID, f.cfg.MicrosoftClientSecret,
			f.cfg.MicrosoftTenantID, f.cfg.MicrosoftRedirectURL)
		return office365.NewClient(ctx, f.logger, oauthConfig, p.Token, f.officeOpts...)

	case models.ProviderWebDAV:
		if p.URL == "" || p.Username == "" {
			return nil, errors.New("webdav: connection needs url and username")
		}
		return caldav.NewClient(f.logger, provider, p.URL, p.Username, p.Password)

	case models.ProviderICloud:
		if p.Username == "" {
			return nil, errors.New("icloud: connection needs username")
		}
		endpoint := p.URL
		if endpoint == "" {
			endpoint = caldav.ICloudEndpoint
		}
		return caldav.NewClient(f.logger, provider, endpoint, p.Username, p.Password)

	case models.ProviderWebcal:
		if p.URL == "" {
			return nil, errors.New("webcal: connection needs a feed url")
		}
		return caldav.NewFeedClient(f.logger, f.httpClient, p.URL), nil

	case models.ProviderMWW:
		return nil, errNoIntegration
	}
	return nil, fmt.Errorf("unknown calendar provider %q", provider)
}
