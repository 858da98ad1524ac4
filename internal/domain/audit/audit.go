package audit

import (
	"encoding/json"
	"time"
)

// Category represents the type of audit event.
type Category string

const (
	CategoryMember  Category = "member"
	CategoryBilling Category = "billing"
	CategorySystem  Category = "system"
)

// Action represents the action that occurred.
type Action string

const (
	ActionCreate     Action = "create"
	ActionSignup     Action = "signup"
	ActionRenew      Action = "renew"
	ActionReactivate Action = "reactivate"
	ActionGrace      Action = "grace"
	ActionLapse      Action = "lapse"
	ActionCancel     Action = "cancel"
)

// Resource types referenced by events.
const (
	ResourceMember       = "member"
	ResourceSubscription = "subscription"
)

// Event represents a single audit log entry.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Category     Category  `json:"category"`
	Action       Action    `json:"action"`
	ActorID      string    `json:"actor_id"`
	ResourceID   string    `json:"resource_id"`
	ResourceType string    `json:"resource_type"`
	Description  string    `json:"description"`
	Metadata     string    `json:"metadata"`
}

// BillingChange is the metadata recorded for every change to a
// subscription's billing cycle.
type BillingChange struct {
	PreviousExpiry string `json:"previous_expiry,omitempty"`
	NextExpiry     string `json:"next_expiry"`
	PreviousAnchor int    `json:"previous_anchor,omitempty"`
	Anchor         int    `json:"anchor"`
	Cadence        string `json:"cadence"`
	Clamped        bool   `json:"clamped"`
}

// NewEvent creates an event stamped at now.
// PRE: id is non-empty
// POST: Returns an Event with the provided fields
func NewEvent(id string, now time.Time, category Category, action Action) Event {
	return Event{
		ID:        id,
		Timestamp: now,
		Category:  category,
		Action:    action,
	}
}

// WithActor sets who caused the event ("system" for scheduled jobs).
func (e Event) WithActor(actorID string) Event {
	e.ActorID = actorID
	return e
}

// WithResource sets resource information.
// PRE: resourceType and resourceID are non-empty
// POST: Event resource fields are populated
func (e Event) WithResource(resourceType, resourceID string) Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithDescription sets the event description.
func (e Event) WithDescription(desc string) Event {
	e.Description = desc
	return e
}

// WithMetadata sets optional JSON metadata.
// PRE: metadata is valid JSON or empty
// POST: Event metadata is set
func (e Event) WithMetadata(metadata string) Event {
	e.Metadata = metadata
	return e
}

// WithBillingChange encodes change as the event metadata.
func (e Event) WithBillingChange(change BillingChange) Event {
	b, err := json.Marshal(change)
	if err != nil {
		return e
	}
	e.Metadata = string(b)
	return e
}

// BillingChange decodes the event metadata.
// PRE: event was built with WithBillingChange
// POST: Returns the decoded change or an error for other metadata
func (e Event) BillingChange() (BillingChange, error) {
	var c BillingChange
	err := json.Unmarshal([]byte(e.Metadata), &c)
	return c, err
}
