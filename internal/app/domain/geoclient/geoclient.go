// Package geoclient holds thin HTTP clients for the external geo providers:
// IP geolocation, reverse geocoding, and the POI search backends. Each client
// consumes its provider's documented JSON schema and never redefines it.
package geoclient

import (
	"net/http"
	"time"
)

const userAgent = "Wanderer/1.0"

// RawPlace is the provider-neutral shape a POI backend yields before
// normalization. Names carries the default name plus any language-tagged
// alternates ("name", "name:en", ...).
type RawPlace struct {
	SourceID  string
	Latitude  float64
	Longitude float64
	Names     map[string]string
	Tags      map[string]string
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
