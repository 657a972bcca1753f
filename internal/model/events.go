package model

// Well-known event types. Callers may route custom types; these are the ones
// the platform itself emits.
const (
	EventTypeNewVisitorMessage    = "chat.new_visitor_message"
	EventTypeNewTeamMessage       = "chat.new_team_message"
	EventTypeConversationAssigned = "chat.conversation_assigned"
	EventTypeTicketCreated        = "ticket.created"
	EventTypeTicketStatusChanged  = "ticket.status_changed"
	EventTypeOutboundTriggered    = "outbound.triggered"
	EventTypeCampaignTriggered    = "campaign.triggered"
)

// AxisForEventType maps an event type to the preference axis that governs it.
// Everything without a dedicated axis falls under the generic mute flag.
func AxisForEventType(eventType string) PreferenceAxis {
	if eventType == EventTypeNewVisitorMessage {
		return AxisNewVisitorMessage
	}
	return AxisGeneric
}
