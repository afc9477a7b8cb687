// Package integration picks the mapper and client for a provider.
package integration

import (
	"fmt"

	"meetwith/internal/caldav"
	"meetwith/internal/google"
	"meetwith/internal/models"
	"meetwith/internal/office365"
)

// Mapper converts between a provider's native events and UnifiedEvent.
type Mapper interface {
	ToUnified(native models.NativeEvent, cal models.CalendarRef) (*models.UnifiedEvent, error)
	FromUnified(ev *models.UnifiedEvent) (models.NativeEvent, error)
}

// MapperFor returns the mapper for p.
func MapperFor(p models.Provider) (Mapper, error) {
	switch p {
	case models.ProviderGoogle:
		return google.Mapper{}, nil
	case models.ProviderOffice:
		return office365.Mapper{}, nil
	case models.ProviderWebDAV, models.ProviderICloud, models.ProviderWebcal:
		return caldav.Mapper{Provider: p}, nil
	case models.ProviderMWW:
		return nil, errNoIntegration
	}
	return nil, fmt.Errorf("unknown calendar provider %q", p)
}
