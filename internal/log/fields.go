// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldJobID         = "job_id"
	FieldTimerID       = "timer_id"
	FieldAlarmName     = "alarm_name"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldAction    = "action"
	FieldAwaiting  = "awaiting"

	// Media fields
	FieldMediaType = "media_type"
	FieldMediaID   = "media_id"
	FieldNfoPath   = "nfo_path"
	FieldChecksum  = "checksum"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"

	// Host RPC fields
	FieldMethod = "method"
)
