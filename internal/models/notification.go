// internal/models/notification.go
package models

import "time"

// Priority is the urgency class attached to a NotificationEvent.
type Priority string

const (
	PriorityCritical  Priority = "critical"
	PriorityImportant Priority = "important"
	PriorityInfo      Priority = "info"
)

// NotificationPriority maps an event priority onto the persisted
// notification record's priority column.
func NotificationPriority(p Priority) string {
	switch p {
	case PriorityCritical:
		return "high"
	case PriorityInfo:
		return "low"
	default:
		return "normal"
	}
}

// NotificationEvent is one upstream trigger. It is created once,
// immutable, and consumed exactly once by the fan-out resolver.
type NotificationEvent struct {
	EventType     string   `json:"eventType"`
	RelatedType   string   `json:"relatedType"`
	RelatedID     string   `json:"relatedId"`
	TriggeredBy   string   `json:"triggeredBy"`
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	Priority      Priority `json:"priority"`
	URL           string   `json:"url"`
	Location      *LatLng  `json:"location,omitempty"`
	RadiusKm      float64  `json:"radiusKm,omitempty"`
	TargetUserIDs []string `json:"targetUserIds,omitempty"`
}

// Notification is the persisted in-app record, one per recipient.
type Notification struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"userId"`
	Type       string                 `json:"type"`
	Title      string                 `json:"title"`
	Body       string                 `json:"body"`
	Priority   string                 `json:"priority"` // "high", "normal", "low"
	EntityID   string                 `json:"entityId"`
	EntityType string                 `json:"entityType"`
	ActorID    string                 `json:"actorId"`
	Data       map[string]interface{} `json:"data,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// ClientNotificationData rides inside the push payload and carries
// everything the client needs to route a tap.
type ClientNotificationData struct {
	URL         string   `json:"url"`
	RelatedType string   `json:"relatedType"`
	RelatedID   string   `json:"relatedId"`
	Priority    Priority `json:"priority"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
}

// ClientNotification is the push payload. The Tag field is the tray-level
// dedup key: a second push with the same tag replaces the first.
type ClientNotification struct {
	Title              string                 `json:"title"`
	Body               string                 `json:"body"`
	Tag                string                 `json:"tag"`
	Renotify           bool                   `json:"renotify"`
	RequireInteraction bool                   `json:"requireInteraction"`
	Silent             bool                   `json:"silent"`
	Data               ClientNotificationData `json:"data"`
}

// DedupRecord marks that a (entity, eventType, user) tuple was notified.
// Records are written at send time and ignored past the dedup window.
type DedupRecord struct {
	EntityID   string    `json:"entityId"`
	EventType  string    `json:"eventType"`
	UserID     string    `json:"userId"`
	NotifiedAt time.Time `json:"notifiedAt"`
}

// GeoWatcher is one known current user location from the geo index.
type GeoWatcher struct {
	UserID    string    `json:"userId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	GhostMode bool      `json:"ghostMode"`
	UpdatedAt time.Time `json:"updatedAt"`
}
