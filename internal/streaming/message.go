package streaming

import (
	"errors"
	"time"

	"walletfeed/internal/domain"

	jsoniter "github.com/json-iterator/go"
)

type MessageType string

const (
	MessageTypeActivity MessageType = "activity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message is one exported feed item of a tracked wallet.
type Message struct {
	ID         string               `json:"id"`
	Type       MessageType          `json:"type"`
	Wallet     string               `json:"wallet"`
	TraceID    string               `json:"trace_id,omitempty"`
	ExportedAt time.Time            `json:"exported_at"`
	Item       *domain.ActivityItem `json:"item,omitempty"`
}

func Encode(msg Message) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func validate(msg Message) error {
	if msg.Type == "" {
		return errors.New("message type is required")
	}
	if msg.Wallet == "" {
		return errors.New("wallet is required")
	}
	if msg.Type == MessageTypeActivity && msg.Item == nil {
		return errors.New("activity item is required")
	}
	return nil
}
