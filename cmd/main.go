package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"meetwith/internal/apperr"
	"meetwith/internal/config"
	"meetwith/internal/google"
	"meetwith/internal/integration"
	"meetwith/internal/models"
	"meetwith/internal/notify"
	"meetwith/internal/office365"
	"meetwith/internal/reconciler"
	"meetwith/internal/registry"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "meetwith",
		Usage: "Connect calendars and push event updates to Google, Office 365 and CalDAV.",
		Commands: []*cli.Command{
			authCommand(),
			connectCommand(),
			calendarsCommand(),
			eventsCommand(),
			updateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// env bundles what every command needs.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   registry.Store
	factory *integration.Factory
	close   func()
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.LogLevel)

	store, closeStore, err := openStore(ctx, cfg.RegistryDSN)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		factory: integration.NewFactory(cfg, logger),
		close:   closeStore,
	}, nil
}

// openStore uses the JSON file store for plain paths and the SQL store for
// database DSNs.
func openStore(ctx context.Context, dsn string) (registry.Store, func(), error) {
	if !strings.Contains(dsn, ":") {
		return registry.NewFileStore(dsn), func() {}, nil
	}
	s, err := registry.OpenSQL(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google or Microsoft account and save the OAuth token.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "provider", Value: "google", Usage: "google or office365"},
			&cli.StringFlag{Name: "out", Usage: "Token file to write (default token-<name>.json)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			provider, err := models.ParseProvider(c.String("provider"))
			if err != nil {
				return err
			}
			logger.Info("Starting authentication flow.", "provider", provider)

			var oauthConfig *oauth2.Config
			switch provider {
			case models.ProviderGoogle:
				oauthConfig, err = google.OAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret)
				if err != nil {
					return fmt.Errorf("failed to get google oauth config: %w", err)
				}
			case models.ProviderOffice:
				oauthConfig = office365.OAuthConfig(cfg.MicrosoftClientID, cfg.MicrosoftClientSecret,
					cfg.MicrosoftTenantID, cfg.MicrosoftRedirectURL)
			default:
				return fmt.Errorf("%s does not use oauth; pass credentials to connect instead", provider)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			tokenFile := c.String("out")
			if tokenFile == "" {
				fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
				accountName, _ := reader.ReadString('\n')
				tokenFile = "token-" + strings.TrimSpace(accountName) + ".json"
			}

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Register a provider account and its calendars for an account address.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Required: true, Usage: "Account address owning the connection"},
			&cli.StringFlag{Name: "provider", Required: true, Usage: "google, office365, webdav, icloud or webcal"},
			&cli.StringFlag{Name: "token-file", Usage: "OAuth token written by the auth command"},
			&cli.StringFlag{Name: "url", Usage: "CalDAV endpoint or webcal feed URL"},
			&cli.StringFlag{Name: "username", Usage: "CalDAV username"},
			&cli.StringFlag{Name: "password", EnvVars: []string{"CALDAV_PASSWORD"}, Usage: "CalDAV (app-specific) password"},
			&cli.StringFlag{Name: "email", Usage: "Email to record when the provider has none (webcal)"},
			&cli.StringSliceFlag{Name: "disable", Usage: "Calendar ids to register as disabled"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c.Context)
			if err != nil {
				return err
			}
			defer e.close()

			provider, err := models.ParseProvider(c.String("provider"))
			if err != nil {
				return err
			}

			payload := integration.Payload{
				URL:      c.String("url"),
				Username: c.String("username"),
				Password: c.String("password"),
			}
			if path := c.String("token-file"); path != "" {
				if payload.Token, err = google.LoadToken(path); err != nil {
					return fmt.Errorf("failed to load token: %w", err)
				}
			}
			raw, err := integration.EncodePayload(payload)
			if err != nil {
				return err
			}

			conn := registry.ConnectedCalendar{
				AccountAddress: c.String("account"),
				Provider:       provider,
				Payload:        raw,
			}
			client, err := e.factory.Client(c.Context, &conn)
			if err != nil {
				return fmt.Errorf("failed to create %s client: %w", provider, err)
			}

			conn.Email = c.String("email")
			if conn.Email == "" {
				if conn.Email, err = client.GetConnectedEmail(c.Context); err != nil {
					return fmt.Errorf("failed to read connected email: %w", err)
				}
			}

			lister, ok := client.(models.CalendarLister)
			if !ok {
				return fmt.Errorf("%s client cannot list calendars", provider)
			}
			cals, err := lister.ListCalendars(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list calendars: %w", err)
			}

			disabled := make(map[string]bool)
			for _, id := range c.StringSlice("disable") {
				disabled[id] = true
			}
			for _, cal := range cals {
				conn.Calendars = append(conn.Calendars, registry.CalendarEntry{
					CalendarID: cal.ID,
					Name:       cal.Name,
					Enabled:    !disabled[cal.ID],
					Sync:       !disabled[cal.ID],
				})
			}

			if err := e.store.SaveConnectedCalendar(c.Context, conn); err != nil {
				return fmt.Errorf("failed to save connection: %w", err)
			}
			e.logger.Info("Connected calendar account.", "provider", provider, "email", conn.Email, "calendars", len(conn.Calendars))
			return nil
		},
	}
}

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List the calendars connected to an account address.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Required: true},
			&cli.BoolFlag{Name: "active", Usage: "Hide disabled integrations"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c.Context)
			if err != nil {
				return err
			}
			defer e.close()

			conns, err := e.store.GetConnectedCalendars(c.Context, c.String("account"), registry.ListOptions{ActiveOnly: c.Bool("active")})
			if err != nil {
				return err
			}
			for _, conn := range conns {
				state := "active"
				if conn.Disabled {
					state = "disabled"
				}
				fmt.Printf("%s %s (%s)\n", conn.Provider, conn.Email, state)
				for _, cal := range conn.Calendars {
					mark := " "
					if cal.Enabled {
						mark = "*"
					}
					fmt.Printf("  [%s] %s  %s\n", mark, cal.CalendarID, cal.Name)
				}
			}
			return nil
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Print the unified events of a connected calendar.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Required: true},
			&cli.StringFlag{Name: "provider", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "calendar", Required: true},
			&cli.IntFlag{Name: "days", Value: 7, Usage: "Number of days from now to fetch"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c.Context)
			if err != nil {
				return err
			}
			defer e.close()

			provider, err := models.ParseProvider(c.String("provider"))
			if err != nil {
				return err
			}
			probe := &models.UnifiedEvent{Source: provider, AccountEmail: c.String("email"), CalendarID: c.String("calendar")}
			conn, entry, err := registry.Resolve(c.Context, e.store, c.String("account"), probe)
			if err != nil {
				return err
			}

			client, err := e.factory.Client(c.Context, conn)
			if err != nil {
				return err
			}
			mapper, err := integration.MapperFor(provider)
			if err != nil {
				return err
			}

			now := time.Now()
			natives, err := client.GetEvents(c.Context, entry.CalendarID, now, now.AddDate(0, 0, c.Int("days")))
			if err != nil {
				return fmt.Errorf("failed to fetch events: %w", err)
			}
			ref := models.CalendarRef{ID: entry.CalendarID, Name: entry.Name, AccountEmail: conn.Email}
			events := make([]*models.UnifiedEvent, 0, len(natives))
			for _, n := range natives {
				u, err := mapper.ToUnified(n, ref)
				if err != nil {
					e.logger.Warn("Skipping event", "id", n.NativeID(), "error", err)
					continue
				}
				events = append(events, u)
			}
			return printJSON(events)
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Apply a unified event (JSON) to its provider and print the confirmed result.",
		ArgsUsage: "<event.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Required: true},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one event file")
			}
			e, err := setup(c.Context)
			if err != nil {
				return err
			}
			defer e.close()

			data, err := os.ReadFile(c.Args().First())
			if err != nil {
				return err
			}
			var ev models.UnifiedEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				return fmt.Errorf("invalid event file: %w", err)
			}

			reporter, closeReporter, err := newReporter(e)
			if err != nil {
				return err
			}
			defer closeReporter()
			r := reconciler.New(e.logger, e.store, e.factory,
				reconciler.WithReporter(reporter),
				reconciler.WithRefetchMargin(e.cfg.RefetchMargin))

			result, err := r.UpdateCalendarEvent(c.Context, c.String("account"), &ev)
			if err != nil {
				if ae, ok := apperr.As(err); ok {
					return fmt.Errorf("%s (%s): %s", ae.Message, ae.Kind, ae.Cause())
				}
				return err
			}
			return printJSON(result)
		},
	}
}

func newReporter(e *env) (notify.Reporter, func(), error) {
	logReporter := notify.NewLogReporter(e.logger)
	if e.cfg.RedisURL == "" {
		return logReporter, func() {}, nil
	}
	redisReporter, err := notify.NewRedisReporter(e.cfg.RedisURL, e.cfg.NotifyStream)
	if err != nil {
		return nil, nil, err
	}
	return notify.Multi{redisReporter, logReporter}, func() { redisReporter.Close() }, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
