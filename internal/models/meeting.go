package models

import (
	"net/url"
	"regexp"
	"strings"
)

// MeetingDomains are the conferencing hosts recognized when a meeting link
// has to be pulled out of free text. Subdomains match as well.
var MeetingDomains = []string{
	"zoom.us",
	"meet.google.com",
	"teams.microsoft.com",
	"teams.live.com",
	"whereby.com",
	"meet.jit.si",
	"webex.com",
	"huddle01.com",
	"meetwith.xyz",
	"meetwithwallet.xyz",
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// ExtractMeetingURL returns the first link in text whose host is one of
// MeetingDomains, or "" when there is none.
func ExtractMeetingURL(text string) string {
	for _, candidate := range urlPattern.FindAllString(text, -1) {
		candidate = strings.TrimRight(candidate, ".,;:!?)]}")
		u, err := url.Parse(candidate)
		if err != nil || u.Host == "" {
			continue
		}
		if IsMeetingHost(u.Hostname()) {
			return candidate
		}
	}
	return ""
}

// IsMeetingHost reports whether host belongs to a recognized conferencing
// service.
func IsMeetingHost(host string) bool {
	host = strings.ToLower(host)
	for _, d := range MeetingDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// FirstMeetingURL applies the extraction precedence shared by all mappers:
// an explicit conference entry point, then a provider video link, then a
// recognized link inside the location text.
func FirstMeetingURL(conference, videoLink, location string) string {
	if conference != "" {
		return conference
	}
	if videoLink != "" {
		return videoLink
	}
	return ExtractMeetingURL(location)
}
