package device

import (
	"strings"

	"github.com/google/uuid"
)

// Context identifies the installation every operation and move is tagged with.
type Context struct {
	DeviceID string
}

// NewID generates a device identifier of the form device-xxxxxxxx.
func NewID() string {
	return "device-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// Valid reports whether the context carries an identifier.
func (c Context) Valid() bool {
	return c.DeviceID != ""
}
