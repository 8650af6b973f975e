package domain

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat        float64
	Lon        float64
	PlaceName  string
	Confidence float64 // 0.0 to 1.0 provider confidence score
}

// Found reports whether the provider matched the query.
func (r GeocodingResult) Found() bool {
	return r.PlaceName != ""
}

// Geocoder fills in coordinates for locations whose feed does not carry them.
type Geocoder interface {
	// ForwardGeocode converts a place name to coordinates.
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)
}

// Geocoding outcomes returned by EnrichWithGeocoding.
const (
	GeoSourceOriginal = "original"
	GeoSourceForward  = "forward"
	GeoSourceEmpty    = "empty"
	GeoSourceFailed   = "failed"
)

// GeocodeQuery returns the place name used to look up l, most specific part first.
func (l *Location) GeocodeQuery() string {
	var parts []string
	for _, p := range []string{l.Province, l.State, l.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// HasCoordinates reports whether the feed supplied a latitude or a longitude.
func (l *Location) HasCoordinates() bool {
	return l.Latitude != "" || l.Longitude != ""
}

// EnrichWithGeocoding sets the coordinates of a newly built location from
// geocoder when the feed supplied neither of them. A location with even one
// feed coordinate is left as read. A lookup failure leaves l unchanged and is
// reported only through the returned outcome.
func EnrichWithGeocoding(ctx context.Context, l *Location, geocoder Geocoder, logger *slog.Logger) string {
	if geocoder == nil || l.HasCoordinates() {
		return GeoSourceOriginal
	}
	query := l.GeocodeQuery()
	if query == "" {
		return GeoSourceOriginal
	}

	result, err := geocoder.ForwardGeocode(ctx, query)
	if err != nil {
		logger.Warn("forward geocoding failed", "location", l.Key, "query", query, "error", err)
		return GeoSourceFailed
	}
	if !result.Found() {
		logger.Debug("no geocoding match", "location", l.Key, "query", query)
		return GeoSourceEmpty
	}

	l.Latitude = strconv.FormatFloat(result.Lat, 'f', -1, 64)
	l.Longitude = strconv.FormatFloat(result.Lon, 'f', -1, 64)
	return GeoSourceForward
}
