package models

// TriageCategory classifies what kind of help a triage request needs.
type TriageCategory string

const (
	CategoryCritical TriageCategory = "Critical"
	CategoryRescue   TriageCategory = "Rescue"
	CategoryMedical  TriageCategory = "Medical"
	CategoryPower    TriageCategory = "Power"
	CategoryResource TriageCategory = "Resource"
	CategoryOther    TriageCategory = "Other"
)

// TriageCategories lists every valid category, in display order.
var TriageCategories = []TriageCategory{
	CategoryCritical,
	CategoryRescue,
	CategoryPower,
	CategoryResource,
	CategoryMedical,
	CategoryOther,
}

func (c TriageCategory) Valid() bool {
	for _, v := range TriageCategories {
		if c == v {
			return true
		}
	}
	return false
}

// Severity grades SOS signals and incident reports.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// TriageStatus is the triage request lifecycle. Transitions only move
// forward; CANCELLED is a terminal branch off any non-terminal state.
type TriageStatus string

const (
	TriageCreated    TriageStatus = "CREATED"
	TriageAssigned   TriageStatus = "ASSIGNED"
	TriageInProgress TriageStatus = "IN_PROGRESS"
	TriageCompleted  TriageStatus = "COMPLETED"
	TriageCancelled  TriageStatus = "CANCELLED"
)

func (s TriageStatus) Valid() bool {
	switch s {
	case TriageCreated, TriageAssigned, TriageInProgress, TriageCompleted, TriageCancelled:
		return true
	}
	return false
}

func (s TriageStatus) Terminal() bool {
	return s == TriageCompleted || s == TriageCancelled
}

func (s TriageStatus) rank() int {
	switch s {
	case TriageCreated:
		return 0
	case TriageAssigned:
		return 1
	case TriageInProgress:
		return 2
	case TriageCompleted:
		return 3
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is legal.
// Forward jumps that skip intermediate states are allowed; repeating
// the current status is accepted as a no-op.
func (s TriageStatus) CanTransitionTo(next TriageStatus) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if next == TriageCancelled {
		return true
	}
	return next.rank() > s.rank()
}

// SOSStatus is the SOS signal lifecycle. CREATED and BROADCASTING are
// equivalent open sub-states; RESPONDED is optional on the way to
// RESOLVED.
type SOSStatus string

const (
	SOSCreated      SOSStatus = "CREATED"
	SOSBroadcasting SOSStatus = "BROADCASTING"
	SOSAcknowledged SOSStatus = "ACKNOWLEDGED"
	SOSResponded    SOSStatus = "RESPONDED"
	SOSResolved     SOSStatus = "RESOLVED"
	SOSCancelled    SOSStatus = "CANCELLED"
)

func (s SOSStatus) Valid() bool {
	switch s {
	case SOSCreated, SOSBroadcasting, SOSAcknowledged, SOSResponded, SOSResolved, SOSCancelled:
		return true
	}
	return false
}

func (s SOSStatus) Terminal() bool {
	return s == SOSResolved || s == SOSCancelled
}

// Open reports whether the signal is still in a pre-acknowledgement
// sub-state.
func (s SOSStatus) Open() bool {
	return s == SOSCreated || s == SOSBroadcasting
}

func (s SOSStatus) rank() int {
	switch s {
	case SOSCreated, SOSBroadcasting:
		return 0
	case SOSAcknowledged:
		return 1
	case SOSResponded:
		return 2
	case SOSResolved:
		return 3
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is legal.
// Forward jumps (including CREATED straight to RESOLVED) are allowed;
// backward moves and moves out of a terminal state are not.
func (s SOSStatus) CanTransitionTo(next SOSStatus) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if next == SOSCancelled {
		return true
	}
	return next.rank() >= s.rank()
}

// IncidentStatus is the incident report lifecycle.
type IncidentStatus string

const (
	IncidentOpen       IncidentStatus = "Open"
	IncidentInProgress IncidentStatus = "In Progress"
	IncidentResolved   IncidentStatus = "Resolved"
	IncidentClosed     IncidentStatus = "Closed"
)

func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentOpen, IncidentInProgress, IncidentResolved, IncidentClosed:
		return true
	}
	return false
}

func (s IncidentStatus) Terminal() bool {
	return s == IncidentClosed
}

func (s IncidentStatus) rank() int {
	switch s {
	case IncidentOpen:
		return 0
	case IncidentInProgress:
		return 1
	case IncidentResolved:
		return 2
	case IncidentClosed:
		return 3
	}
	return -1
}

func (s IncidentStatus) CanTransitionTo(next IncidentStatus) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}
