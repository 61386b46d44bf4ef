// Package api provides the interface and error types for the upstream generation data API.
package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/DridrM/renewable-energy-forecast/internal/resource"
)

// Source fetches raw generation payloads from the upstream API.
type Source interface {
	// Fetch queries the resource with the given parameters and returns the raw JSON body.
	// An empty params queries the API default period.
	Fetch(ctx context.Context, kind resource.Kind, params url.Values) ([]byte, error)
}

// maxPayloadInError bounds the payload echoed by UpstreamError.Error.
const maxPayloadInError = 512

// UpstreamError reports that the API answered with something other than the
// expected data, typically an error body.
type UpstreamError struct {
	// StatusCode is the HTTP status, 0 when the status was fine but the body was not.
	StatusCode int
	// Reason describes what was wrong with the payload.
	Reason string
	// Payload is the raw body as received.
	Payload []byte
}

func (e *UpstreamError) Error() string {
	payload := string(e.Payload)
	if len(payload) > maxPayloadInError {
		payload = payload[:maxPayloadInError] + "..."
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream status %d: %s: %s", e.StatusCode, e.Reason, payload)
	}
	return fmt.Sprintf("upstream payload: %s: %s", e.Reason, payload)
}
