package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"lofawell/internal/core"
)

// Message kinds carried on the shared queue. Every payload embeds a
// "kind" discriminator so one consumer loop can dispatch both.
const (
	KindApplicationSync = "application-sync"
	KindDecision        = "decision"
)

// ApplicationSyncMessage asks the worker to mirror one application to
// the export spreadsheet. It carries only the id; the worker fetches
// the current record from the store, so a stale message exports fresh
// data.
type ApplicationSyncMessage struct {
	Kind      string    `json:"kind"`
	AppID     string    `json:"app_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewApplicationSyncMessage(appID string) *ApplicationSyncMessage {
	return &ApplicationSyncMessage{
		Kind:      KindApplicationSync,
		AppID:     appID,
		Timestamp: time.Now(),
	}
}

func (m *ApplicationSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DecisionMessage carries a review outcome to the worker, which
// delivers it to the applicant over the configured mail sink.
type DecisionMessage struct {
	Kind      string      `json:"kind"`
	AppID     string      `json:"app_id"`
	To        string      `json:"to"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
	Decision  core.Status `json:"decision"`
	Timestamp time.Time   `json:"timestamp"`
}

func (m *DecisionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

type envelope struct {
	Kind string `json:"kind"`
}

// DecodeMessage inspects the kind discriminator and returns either an
// *ApplicationSyncMessage or a *DecisionMessage.
func DecodeMessage(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Kind {
	case KindApplicationSync:
		var msg ApplicationSyncMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode sync message: %w", err)
		}
		return &msg, nil
	case KindDecision:
		var msg DecisionMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode decision message: %w", err)
		}
		return &msg, nil
	default:
		return nil, fmt.Errorf("unknown message kind %q", env.Kind)
	}
}
