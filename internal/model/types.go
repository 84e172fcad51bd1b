package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// MaxRefreshSeconds is the largest refresh_rate that fits a time.Duration.
// Larger values are capped to it.
const MaxRefreshSeconds = uint64(math.MaxInt64 / int64(time.Second))

// Directive is one parsed response of the display endpoint. Every response
// is served as HTTP 200; Status and Error carry the real outcome.
type Directive struct {
	Status      int     `json:"status"`
	Error       *string `json:"error,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	RefreshRate *uint64 `json:"refresh_rate,omitempty"` // seconds

	// Pass-through fields, not consumed by the refresh loop.
	Filename        *string `json:"filename,omitempty"`
	ResetFirmware   bool    `json:"reset_firmware"`
	UpdateFirmware  *bool   `json:"update_firmware,omitempty"`
	FirmwareURL     *string `json:"firmware_url,omitempty"`
	SpecialFunction *string `json:"special_function,omitempty"`
}

// ParseDirective decodes a display endpoint body.
func ParseDirective(body []byte) (*Directive, error) {
	var d Directive
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("decoding directive: %w", err)
	}
	return &d, nil
}

// ErrorMessage returns the server supplied message or fallback.
func (d *Directive) ErrorMessage(fallback string) string {
	if d.Error != nil && *d.Error != "" {
		return *d.Error
	}
	return fallback
}

// Interval returns the refresh interval the directive asks for, or def
// when the field is absent. A refresh_rate of 0 means poll again right
// away; values past MaxRefreshSeconds are capped.
func (d *Directive) Interval(def time.Duration) time.Duration {
	if d.RefreshRate == nil {
		return def
	}
	secs := *d.RefreshRate
	if secs > MaxRefreshSeconds {
		secs = MaxRefreshSeconds
	}
	return time.Duration(secs) * time.Second
}

// RefreshRateCapped reports whether refresh_rate was too large to honor.
func (d *Directive) RefreshRateCapped() bool {
	return d.RefreshRate != nil && *d.RefreshRate > MaxRefreshSeconds
}

// Payload is one fetched, still encoded image on its way to the renderer.
type Payload struct {
	Data      []byte
	SourceURL string
	Filename  string
	FetchedAt time.Time
}

// Trigger records what started a poll cycle.
type Trigger string

const (
	TriggerStartup   Trigger = "startup"
	TriggerSchedule  Trigger = "schedule"
	TriggerInterrupt Trigger = "interrupt"
)

// Outcome is the settled result of one poll cycle.
type Outcome string

const (
	OutcomeRendered       Outcome = "rendered"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeMalformed      Outcome = "malformed"
	OutcomeServerError    Outcome = "server_error"
	OutcomeFatal          Outcome = "fatal"
)

// CycleRecord is the history entry written for every poll cycle.
type CycleRecord struct {
	ID              string        `json:"id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration_ns"`
	Trigger         Trigger       `json:"trigger"`
	HTTPStatus      int           `json:"http_status"` // 0 when no response arrived
	DirectiveStatus *int          `json:"directive_status,omitempty"`
	Outcome         Outcome       `json:"outcome"`
	Message         string        `json:"message"`
	ImageURL        string        `json:"image_url,omitempty"`
	PayloadBytes    int           `json:"payload_bytes"`
	NextInterval    time.Duration `json:"next_interval_ns"`
}
