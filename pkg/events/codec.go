package events

import (
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	jsoniter "github.com/json-iterator/go"
)

// Metadata keys set on every domain event message.
const (
	MetadataEventID      = "event_id"
	MetadataEventVersion = "event_version"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is implemented by domain events so the codec can stamp metadata
// without knowing the concrete type.
type Envelope interface {
	EventKey() string
	SchemaVersion() int
}

// NewMessage encodes evt as a Watermill message with event_id and
// event_version metadata.
func NewMessage(evt Envelope) (*message.Message, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("events: marshal %T: %w", evt, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataEventID, evt.EventKey())
	msg.Metadata.Set(MetadataEventVersion, strconv.Itoa(evt.SchemaVersion()))
	return msg, nil
}

// Decode unmarshals msg's payload into dst.
func Decode(msg *message.Message, dst any) error {
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("events: decode message %s: %w", msg.UUID, err)
	}
	return nil
}
