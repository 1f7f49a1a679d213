package tracking

import (
	"tourist-overwatch/pkg/ontology"
)

const (
	AnomalyAlertMessage = "You are on a wrong anomalous path. Return to the correct path immediately."
	SOSAlertMessage     = "You raised an SOS. Help is on the way! Stay where you are."
)

// alertFeed is append-only; it can only be cleared as a whole.
type alertFeed struct {
	alerts []ontology.SafetyAlert
}

func (f *alertFeed) append(alert ontology.SafetyAlert) {
	f.alerts = append(f.alerts, alert)
}

func (f *alertFeed) all() []ontology.SafetyAlert {
	out := make([]ontology.SafetyAlert, len(f.alerts))
	copy(out, f.alerts)
	return out
}

func (f *alertFeed) clear() int {
	n := len(f.alerts)
	f.alerts = nil
	return n
}
