package model

import "time"

// Shared defaults used by the client binary and its packages.
const (
	DefaultRefreshInterval = 600 * time.Second
	DefaultTickInterval    = 50 * time.Millisecond
	DefaultImageQueueSize  = 2
	DefaultServerErrorCode = 500
	DefaultBaseURL         = "https://usetrmnl.com"
	DefaultWidth           = 800
	DefaultHeight          = 480
	DefaultRefreshKey      = "r"
)

// Tick bounds. Ticking slower misses input events, faster makes some
// surfaces unstable.
const (
	MinTickInterval = 20 * time.Millisecond
	MaxTickInterval = 250 * time.Millisecond
)
