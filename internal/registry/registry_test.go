package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"meetwith/internal/apperr"
	"meetwith/internal/models"

	"github.com/goccy/go-json"
)

type errStore struct{ err error }

func (s errStore) GetConnectedCalendars(ctx context.Context, accountAddress string, opts ListOptions) ([]ConnectedCalendar, error) {
	return nil, s.err
}

func (s errStore) SaveConnectedCalendar(ctx context.Context, cal ConnectedCalendar) error {
	return s.err
}

func seed(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	conns := []ConnectedCalendar{
		{
			AccountAddress: "0xABC",
			Email:          "Owner@Example.com",
			Provider:       models.ProviderGoogle,
			Payload:        []byte(`{"token":{"access_token":"t"}}`),
			Calendars: []CalendarEntry{
				{CalendarID: "primary", Name: "Owner", Enabled: true, Sync: true},
				{CalendarID: "holidays", Name: "Holidays", Enabled: false},
			},
		},
		{
			AccountAddress: "0xabc",
			Email:          "owner@example.com",
			Provider:       models.ProviderOffice,
			Calendars:      []CalendarEntry{{CalendarID: "AAMk", Enabled: true}},
			Disabled:       true,
		},
	}
	for _, c := range conns {
		if err := store.SaveConnectedCalendar(ctx, c); err != nil {
			t.Fatalf("SaveConnectedCalendar: %v", err)
		}
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sqlStore, err := OpenSQL(context.Background(), "sqlite:"+filepath.Join(dir, "registry.db"))
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	t.Cleanup(func() { sqlStore.Close() })

	return map[string]Store{
		"file": NewFileStore(filepath.Join(dir, "registry.json")),
		"sql":  sqlStore,
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		event   models.UnifiedEvent
		wantErr bool
	}{
		{"enabled calendar", models.UnifiedEvent{Source: models.ProviderGoogle, AccountEmail: "OWNER@example.com", CalendarID: "primary"}, false},
		{"disabled calendar", models.UnifiedEvent{Source: models.ProviderGoogle, AccountEmail: "owner@example.com", CalendarID: "holidays"}, true},
		{"unknown calendar", models.UnifiedEvent{Source: models.ProviderGoogle, AccountEmail: "owner@example.com", CalendarID: "nope"}, true},
		{"other email", models.UnifiedEvent{Source: models.ProviderGoogle, AccountEmail: "else@example.com", CalendarID: "primary"}, true},
		{"provider mismatch", models.UnifiedEvent{Source: models.ProviderICloud, AccountEmail: "owner@example.com", CalendarID: "primary"}, true},
		{"disabled connection", models.UnifiedEvent{Source: models.ProviderOffice, AccountEmail: "owner@example.com", CalendarID: "AAMk"}, true},
	}

	for storeName, store := range stores(t) {
		seed(t, store)
		for _, tt := range tests {
			t.Run(storeName+"/"+tt.name, func(t *testing.T) {
				conn, entry, err := Resolve(context.Background(), store, "0xabc", &tt.event)
				if tt.wantErr {
					if !apperr.Is(err, apperr.KindCalendarNotFoundOrDisabled) {
						t.Fatalf("err = %v, want calendar not found", err)
					}
					if err.Error() != apperr.MsgCalendarNotFound {
						t.Errorf("message = %q", err.Error())
					}
					return
				}
				if err != nil {
					t.Fatalf("Resolve: %v", err)
				}
				if conn.Provider != models.ProviderGoogle || entry.CalendarID != "primary" || !entry.Enabled {
					t.Errorf("resolved %+v / %+v", conn, entry)
				}
				var payload struct {
					Token struct {
						AccessToken string `json:"access_token"`
					} `json:"token"`
				}
				if err := json.Unmarshal(conn.Payload, &payload); err != nil || payload.Token.AccessToken != "t" {
					t.Errorf("payload = %s (%v)", conn.Payload, err)
				}
			})
		}
	}
}

func TestResolveStorageError(t *testing.T) {
	ev := &models.UnifiedEvent{Source: models.ProviderGoogle, CalendarID: "primary"}
	_, _, err := Resolve(context.Background(), errStore{errors.New("disk gone")}, "0xabc", ev)
	if !apperr.Is(err, apperr.KindStorage) {
		t.Errorf("err = %v, want storage error", err)
	}
}

func TestGetConnectedCalendarsActiveOnly(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, store)
			ctx := context.Background()

			all, err := store.GetConnectedCalendars(ctx, "0xABC", ListOptions{})
			if err != nil {
				t.Fatalf("GetConnectedCalendars: %v", err)
			}
			if len(all) != 2 {
				t.Errorf("all = %d, want 2", len(all))
			}

			active, err := store.GetConnectedCalendars(ctx, "0xabc", ListOptions{ActiveOnly: true})
			if err != nil {
				t.Fatalf("GetConnectedCalendars: %v", err)
			}
			if len(active) != 1 || active[0].Provider != models.ProviderGoogle {
				t.Fatalf("active = %+v", active)
			}
			if len(active[0].Calendars) != 2 || active[0].Calendars[1].Enabled {
				t.Errorf("calendars = %+v", active[0].Calendars)
			}
			if active[0].UpdatedAt.IsZero() {
				t.Error("UpdatedAt not set")
			}

			none, err := store.GetConnectedCalendars(ctx, "0xdef", ListOptions{})
			if err != nil || len(none) != 0 {
				t.Errorf("unknown account = %v, %v", none, err)
			}
		})
	}
}

func TestSaveReplacesConnection(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, store)
			ctx := context.Background()

			err := store.SaveConnectedCalendar(ctx, ConnectedCalendar{
				AccountAddress: "0xabc",
				Email:          "owner@example.com",
				Provider:       models.ProviderGoogle,
				Calendars:      []CalendarEntry{{CalendarID: "primary", Enabled: false}},
			})
			if err != nil {
				t.Fatalf("SaveConnectedCalendar: %v", err)
			}

			conns, _ := store.GetConnectedCalendars(ctx, "0xabc", ListOptions{ActiveOnly: true})
			if len(conns) != 1 || len(conns[0].Calendars) != 1 || conns[0].Calendars[0].Enabled {
				t.Errorf("conns = %+v", conns)
			}
		})
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	conns, err := store.GetConnectedCalendars(context.Background(), "0xabc", ListOptions{})
	if err != nil || len(conns) != 0 {
		t.Errorf("conns = %v, err = %v", conns, err)
	}
}

func TestOpenSQLRejectsUnknownDSN(t *testing.T) {
	if _, err := OpenSQL(context.Background(), "mysql://x"); err == nil {
		t.Error("expected error")
	}
}
