package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"expensetracker/internal/core"
)

// MaxBodyBytes caps create and update bodies.
const MaxBodyBytes = 64 << 10

// ErrBodyTooLarge is returned when a body exceeds MaxBodyBytes.
var ErrBodyTooLarge = fmt.Errorf("%w: body exceeds %d bytes", core.ErrMalformedBody, MaxBodyBytes)

// ParsePayload reads the request body, enforcing MaxBodyBytes, and decodes
// it as an expense payload.
func ParsePayload(w http.ResponseWriter, r *http.Request) (core.Payload, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.Payload{}, ErrBodyTooLarge
		}
		return core.Payload{}, fmt.Errorf("%w: %v", core.ErrMalformedBody, err)
	}
	return core.DecodePayload(bytes.NewReader(body))
}

// PathID returns the {id} path segment, untrimmed. Services decide whether
// it is usable.
func PathID(r *http.Request) string {
	return r.PathValue("id")
}
