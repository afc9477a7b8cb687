package models

// ParticipationStatus is the scheduling platform's RSVP vocabulary. It has
// no fourth state, so tentative and unanswered both become Pending.
type ParticipationStatus string

const (
	ParticipationAccepted ParticipationStatus = "Accepted"
	ParticipationRejected ParticipationStatus = "Rejected"
	ParticipationPending  ParticipationStatus = "Pending"
)

// ParticipantType distinguishes the meeting owner from invited guests.
type ParticipantType string

const (
	ParticipantOwner   ParticipantType = "owner"
	ParticipantInvitee ParticipantType = "invitee"
)

// Participant is one attendee as carried in an update request.
type Participant struct {
	GuestEmail     string              `json:"guest_email,omitempty"`
	AccountAddress string              `json:"account_address,omitempty"`
	Name           string              `json:"name,omitempty"`
	Status         ParticipationStatus `json:"status"`
	Type           ParticipantType     `json:"type"`
}

// UpdateRequest is what the reconciler hands to an integration client.
// Native is the provider patch produced by that provider's mapper.
type UpdateRequest struct {
	CalendarID   string
	Participants []Participant
	Native       NativeEvent
}

// ParticipationFor maps every attendee status onto the participation
// vocabulary. Unknown values are treated as unanswered.
func ParticipationFor(s AttendeeStatus) ParticipationStatus {
	switch s {
	case AttendeeAccepted:
		return ParticipationAccepted
	case AttendeeDeclined:
		return ParticipationRejected
	case AttendeeTentative, AttendeeNeedsAction:
		return ParticipationPending
	}
	return ParticipationPending
}

// ParticipantsFor converts attendees one-to-one, in order. The owner tag
// depends only on IsOrganizer.
func ParticipantsFor(attendees []UnifiedAttendee) []Participant {
	out := make([]Participant, 0, len(attendees))
	for _, a := range attendees {
		typ := ParticipantInvitee
		if a.IsOrganizer {
			typ = ParticipantOwner
		}
		out = append(out, Participant{
			GuestEmail:     a.Email,
			AccountAddress: a.AccountAddress,
			Name:           a.Name,
			Status:         ParticipationFor(a.Status),
			Type:           typ,
		})
	}
	return out
}

// HasInvitees reports whether any participant is a guest.
func HasInvitees(ps []Participant) bool {
	for _, p := range ps {
		if p.Type == ParticipantInvitee {
			return true
		}
	}
	return false
}
