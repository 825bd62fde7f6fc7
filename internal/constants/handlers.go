package constants

import "time"

// HTTP server constants
const (
	// SessionDuration is how long an admin session stays valid
	SessionDuration = 24 * time.Hour

	// RequestTimeout bounds a single API request, encoder round trip included
	RequestTimeout = 2 * time.Minute

	// SessionCleanupInterval is how often expired sessions are purged
	SessionCleanupInterval = 15 * time.Minute
)

// Camera constants
const (
	// CameraTimeout bounds a single snapshot request
	CameraTimeout = 10 * time.Second
)
