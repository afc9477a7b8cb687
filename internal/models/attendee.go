package models

import "strings"

// AttendeeStatus is an attendee's response to an invitation.
type AttendeeStatus string

const (
	AttendeeAccepted    AttendeeStatus = "ACCEPTED"
	AttendeeDeclined    AttendeeStatus = "DECLINED"
	AttendeeTentative   AttendeeStatus = "TENTATIVE"
	AttendeeNeedsAction AttendeeStatus = "NEEDS_ACTION"
)

// UnifiedAttendee is a participant of a UnifiedEvent.
type UnifiedAttendee struct {
	Email          string         `json:"email,omitempty"`
	Name           string         `json:"name,omitempty"`
	AccountAddress string         `json:"accountAddress,omitempty"`
	IsOrganizer    bool           `json:"isOrganizer"`
	Status         AttendeeStatus `json:"status"`
	ProviderData   ProviderData   `json:"providerData,omitempty"`
}

// Identity is the key attendees are de-duplicated on: the lower-cased
// email, or the account address when there is no email. Attendees with
// neither have no identity and are never merged.
func (a UnifiedAttendee) Identity() string {
	if e := strings.ToLower(strings.TrimSpace(a.Email)); e != "" {
		return "mailto:" + e
	}
	if acc := strings.ToLower(strings.TrimSpace(a.AccountAddress)); acc != "" {
		return "account:" + acc
	}
	return ""
}

// statusRank orders responses by how definitive they are.
func statusRank(s AttendeeStatus) int {
	switch s {
	case AttendeeAccepted, AttendeeDeclined:
		return 3
	case AttendeeTentative:
		return 2
	case AttendeeNeedsAction:
		return 1
	}
	return 0
}

// DedupeAttendees merges attendees that share an identity, keeping the
// position of the first occurrence. A merged attendee is the organizer if
// any duplicate was, keeps the most definitive response (first wins on a
// tie), and fills in missing name, email, account and provider fields.
func DedupeAttendees(in []UnifiedAttendee) []UnifiedAttendee {
	out := make([]UnifiedAttendee, 0, len(in))
	index := make(map[string]int, len(in))
	for _, a := range in {
		if a.Status == "" {
			a.Status = AttendeeNeedsAction
		}
		id := a.Identity()
		if id == "" {
			out = append(out, a)
			continue
		}
		i, seen := index[id]
		if !seen {
			index[id] = len(out)
			out = append(out, a)
			continue
		}
		cur := &out[i]
		cur.IsOrganizer = cur.IsOrganizer || a.IsOrganizer
		if statusRank(a.Status) > statusRank(cur.Status) {
			cur.Status = a.Status
		}
		if cur.Name == "" {
			cur.Name = a.Name
		}
		if cur.Email == "" {
			cur.Email = a.Email
		}
		if cur.AccountAddress == "" {
			cur.AccountAddress = a.AccountAddress
		}
		cur.ProviderData = cur.ProviderData.Merge(a.ProviderData)
	}
	return out
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
