package webhooks

// Event types emitted by the platform. Configs may subscribe to any tag; these are the ones
// produced today.
const (
	EventMessageReceived      = "message.received"
	EventMessageSent          = "message.sent"
	EventMessageDelivered     = "message.delivered"
	EventMessageRead          = "message.read"
	EventConversationCreated  = "conversation.created"
	EventConversationClosed   = "conversation.closed"
	EventWhatsAppConnected    = "whatsapp.connected"
	EventWhatsAppDisconnected = "whatsapp.disconnected"
	EventAgentAssigned        = "agent.assigned"

	// EventTest is only sent by TestWebhook.
	EventTest = "test"
)

var KnownEvents = []string{
	EventMessageReceived,
	EventMessageSent,
	EventMessageDelivered,
	EventMessageRead,
	EventConversationCreated,
	EventConversationClosed,
	EventWhatsAppConnected,
	EventWhatsAppDisconnected,
	EventAgentAssigned,
}

// Reserved headers are always set by the dispatcher; config headers cannot replace them.
const (
	HeaderContentType = "Content-Type"
	HeaderSignature   = "X-Webhook-Signature"
	HeaderEvent       = "X-Webhook-Event"
	HeaderTimestamp   = "X-Webhook-Timestamp"
)

var reservedHeaders = []string{HeaderContentType, HeaderSignature, HeaderEvent, HeaderTimestamp}
