package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorHidesCause(t *testing.T) {
	cause := errors.New("googleapi: Error 429: Rate Limit Exceeded")
	err := UpdateFailed(cause)

	if err.Error() != MsgUpdateFailed {
		t.Errorf("Error() = %q, want %q", err.Error(), MsgUpdateFailed)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
	if err.Cause() != cause.Error() {
		t.Errorf("Cause() = %q", err.Cause())
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", MissingField("sourceEventId"), KindValidation},
		{"not found", CalendarNotFound("primary"), KindCalendarNotFoundOrDisabled},
		{"update", UpdateFailed(errors.New("boom")), KindProviderUpdateFailed},
		{"confirmation", ConfirmationFailed("evt"), KindConfirmationFailed},
		{"wrapped", fmt.Errorf("outer: %w", ConfirmationFailed("evt")), KindConfirmationFailed},
		{"plain", errors.New("plain"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	if Is(nil, KindValidation) {
		t.Error("nil error should match no kind")
	}
	if !Is(MissingField("x"), KindValidation) {
		t.Error("MissingField should be a validation error")
	}
}

func TestWithDetail(t *testing.T) {
	err := CalendarNotFound("work")
	if err.Details["calendarId"] != "work" {
		t.Errorf("details = %v", err.Details)
	}
	if err.Message != MsgCalendarNotFound {
		t.Errorf("message = %q", err.Message)
	}
}
