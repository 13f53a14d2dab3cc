package domain

import "encoding/json"

// Message types understood by the direct-message transport. Receivers must
// ignore any type they do not recognize so the protocol can grow without
// breaking old listeners.
const (
	MessageRequestStoreData  = "REQUEST_STORE_DATA"
	MessageStoreDataResponse = "STORE_DATA_RESPONSE"
	MessageDataUpdate        = "DATA_UPDATE"
)

// Message is the JSON envelope exchanged between contexts. Store responses
// historically carry their collection under "stores"; generic updates carry
// theirs under "data". Collection returns whichever is present.
type Message struct {
	Type      string     `json:"type"`
	Entity    EntityType `json:"entity,omitempty"`
	Subdomain string     `json:"subdomain,omitempty"`
	Stores    Collection `json:"stores,omitempty"`
	Data      Collection `json:"data,omitempty"`
	Timestamp int64      `json:"timestamp"`
	From      string     `json:"from,omitempty"`
}

// Collection returns the payload collection regardless of which field the
// sender used.
func (m *Message) Collection() Collection {
	if len(m.Stores) > 0 {
		return m.Stores
	}
	return m.Data
}

// EntityType returns the collection type the message refers to. Store
// responses predate the Entity field and imply the store collection.
func (m *Message) EntityType() EntityType {
	if m.Entity != "" {
		return m.Entity
	}
	return EntityStore
}

// DecodeMessage parses a raw transport payload. It returns ok=false for
// malformed JSON and for envelopes whose type is not one of the known message
// kinds; both are silently dropped by receivers.
func DecodeMessage(b []byte) (*Message, bool) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, false
	}
	switch m.Type {
	case MessageRequestStoreData, MessageStoreDataResponse, MessageDataUpdate:
		return &m, true
	default:
		return nil, false
	}
}

// EncodeMessage serializes a message for the wire.
func EncodeMessage(m *Message) ([]byte, error) {
	return json.Marshal(m)
}
