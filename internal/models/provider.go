package models

import (
	"fmt"
	"strings"
)

// Provider tags the calendar backend an event or connection belongs to.
// The set is closed: every switch over Provider in this module is expected
// to handle all of the values below.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderOffice Provider = "office365"
	ProviderWebDAV Provider = "webdav"
	ProviderICloud Provider = "icloud"
	ProviderWebcal Provider = "webcal"
	// ProviderMWW marks events owned by the scheduling platform itself.
	// It has no external integration.
	ProviderMWW Provider = "mww"
)

// Providers lists every known provider tag.
var Providers = []Provider{
	ProviderGoogle,
	ProviderOffice,
	ProviderWebDAV,
	ProviderICloud,
	ProviderWebcal,
	ProviderMWW,
}

// ParseProvider accepts the canonical tag as well as the upper-case aliases
// used by the scheduling API (GOOGLE, OFFICE, WEBDAV, ICLOUD, WEBCAL, MWW).
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "google":
		return ProviderGoogle, nil
	case "office", "office365", "outlook":
		return ProviderOffice, nil
	case "webdav", "caldav":
		return ProviderWebDAV, nil
	case "icloud":
		return ProviderICloud, nil
	case "webcal", "ical":
		return ProviderWebcal, nil
	case "mww":
		return ProviderMWW, nil
	}
	return "", fmt.Errorf("unknown calendar provider %q", s)
}

// Valid reports whether p is one of the known provider tags.
func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

func (p Provider) String() string { return string(p) }
