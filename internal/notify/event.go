// Package notify fans out real-time inbox updates over websockets and
// publishes domain events to the message broker. Delivery is fire-and-forget:
// a notification failure never fails the operation that produced it.
package notify

import "time"

// Routing keys for published domain events.
const (
	KeyMessageReceived      = "crm.message.received"
	KeyMessageStatus        = "crm.message.status"
	KeyConversationAssigned = "crm.conversation.assigned"
)

// Event is the envelope delivered to websocket clients and the broker.
type Event struct {
	Type       string         `json:"type"`
	TenantID   string         `json:"tenant_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

func newEvent(eventType, tenantID string, payload map[string]any) Event {
	return Event{
		Type:       eventType,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}
