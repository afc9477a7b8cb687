package office365

// Microsoft Graph event resource, trimmed to the fields the mapper reads or
// writes. Read-only fields are omitempty so patches never carry them.

const (
	outlookTimeFormat = "2006-01-02T15:04:05"
	// parseTimeFormat accepts Graph's seven-digit fractional seconds.
	parseTimeFormat = "2006-01-02T15:04:05.9999999"

	// extendedPropertyID names the single-value extended property that holds
	// provider data belonging to other providers.
	extendedPropertyID = "String {66f5a359-4659-4830-9070-00047ec6ac6e} Name mwwProviderData"
)

// Event adapts a Graph event to models.NativeEvent.
type Event struct {
	ID                    string               `json:"id,omitempty"`
	Subject               string               `json:"subject,omitempty"`
	Body                  *itemBody            `json:"body,omitempty"`
	Start                 *dateTimeTimeZone    `json:"start,omitempty"`
	End                   *dateTimeTimeZone    `json:"end,omitempty"`
	Location              *location            `json:"location,omitempty"`
	IsAllDay              bool                 `json:"isAllDay"`
	IsCancelled           bool                 `json:"isCancelled,omitempty"`
	IsOrganizer           bool                 `json:"isOrganizer,omitempty"`
	Organizer             *recipient           `json:"organizer,omitempty"`
	Attendees             []attendee           `json:"attendees,omitempty"`
	Recurrence            *patternedRecurrence `json:"recurrence,omitempty"`
	OnlineMeeting         *onlineMeetingInfo   `json:"onlineMeeting,omitempty"`
	OnlineMeetingURL      string               `json:"onlineMeetingUrl,omitempty"`
	IsOnlineMeeting       *bool                `json:"isOnlineMeeting,omitempty"`
	OnlineMeetingProvider string               `json:"onlineMeetingProvider,omitempty"`
	ShowAs                string               `json:"showAs,omitempty"`
	Importance            string               `json:"importance,omitempty"`
	Sensitivity           string               `json:"sensitivity,omitempty"`
	Categories            []string             `json:"categories,omitempty"`
	IsReminderOn          *bool                `json:"isReminderOn,omitempty"`
	AllowNewTimeProposals *bool                `json:"allowNewTimeProposals,omitempty"`
	HideAttendees         *bool                `json:"hideAttendees,omitempty"`
	ICalUID               string               `json:"iCalUId,omitempty"`
	Type                  string               `json:"type,omitempty"`
	SeriesMasterID        string               `json:"seriesMasterId,omitempty"`
	WebLink               string               `json:"webLink,omitempty"`
	ChangeKey             string               `json:"changeKey,omitempty"`
	LastModifiedDateTime  string               `json:"lastModifiedDateTime,omitempty"`

	SingleValueExtendedProperties []extendedProperty `json:"singleValueExtendedProperties,omitempty"`
}

func (e *Event) NativeID() string {
	if e == nil {
		return ""
	}
	return e.ID
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type location struct {
	DisplayName string `json:"displayName"`
}

type emailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type responseStatus struct {
	Response string `json:"response"`
	Time     string `json:"time,omitempty"`
}

type attendee struct {
	Type         string          `json:"type"`
	Status       *responseStatus `json:"status,omitempty"`
	EmailAddress emailAddress    `json:"emailAddress"`
}

type recurrencePattern struct {
	Type           string   `json:"type"`
	Interval       int      `json:"interval"`
	DaysOfWeek     []string `json:"daysOfWeek,omitempty"`
	DayOfMonth     int      `json:"dayOfMonth,omitempty"`
	Month          int      `json:"month,omitempty"`
	Index          string   `json:"index,omitempty"`
	FirstDayOfWeek string   `json:"firstDayOfWeek,omitempty"`
}

type recurrenceRange struct {
	Type                string `json:"type"`
	StartDate           string `json:"startDate"`
	EndDate             string `json:"endDate,omitempty"`
	NumberOfOccurrences int    `json:"numberOfOccurrences,omitempty"`
}

type patternedRecurrence struct {
	Pattern recurrencePattern `json:"pattern"`
	Range   recurrenceRange   `json:"range"`
}

type onlineMeetingInfo struct {
	JoinURL string `json:"joinUrl"`
}

type extendedProperty struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}
