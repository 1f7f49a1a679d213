package shared

import "fmt"

// NATS Subject patterns
const (
	SubjectPrefix = "overwatch"

	// Alert subjects
	SubjectAlerts     = "overwatch.alerts"
	SubjectAlertsAll  = "overwatch.alerts.>"
	SubjectAlertTyped = "overwatch.alerts.%s.%s" // alert type, tourist_id

	// Telemetry subjects
	SubjectTelemetry        = "overwatch.telemetry"
	SubjectTelemetryAll     = "overwatch.telemetry.>"
	SubjectTelemetryTourist = "overwatch.telemetry.%s" // tourist_id

	// System subjects
	SubjectSystem      = "overwatch.system"
	SubjectSystemAll   = "overwatch.system.>"
	SubjectSystemEvent = "overwatch.system.%s" // event type
)

// Stream names
const (
	StreamAlerts    = "OVERWATCH_ALERTS"
	StreamTelemetry = "OVERWATCH_TELEMETRY"
	StreamEvents    = "OVERWATCH_EVENTS"
)

// Consumer names
const (
	ConsumerAlertArchiver      = "alert-archiver"
	ConsumerTelemetryProcessor = "telemetry-processor"
	ConsumerEventProcessor     = "event-processor"
)

func AlertSubject(alertType, touristID string) string {
	return fmt.Sprintf(SubjectAlertTyped, alertType, subjectToken(touristID))
}

func TelemetryTouristSubject(touristID string) string {
	return fmt.Sprintf(SubjectTelemetryTourist, subjectToken(touristID))
}

func SystemEventSubject(eventType string) string {
	return fmt.Sprintf(SubjectSystemEvent, subjectToken(eventType))
}

// subjectToken keeps ids containing subject separators or wildcards from
// splitting into extra tokens.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	out := []byte(s)
	for i, c := range out {
		switch c {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			out[i] = '_'
		}
	}
	return string(out)
}
