// Package types provides stream event classification using the
// Discriminated Union pattern. The `event` field in each frame acts as
// the discriminator (tag) that determines which concrete Go type should
// be used for full parsing of the frame's data payload.
package types

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// STREAM EVENT CLASSIFIER
// =============================================================================

// StreamEventType represents the classified type of a stream frame.
type StreamEventType int

const (
	StreamEventUnknown StreamEventType = iota
	StreamEventMetadata
	StreamEventValues
	StreamEventUpdates
	StreamEventMessage
	StreamEventError
	StreamEventEnd
)

// String returns a human-readable name for the event type.
func (t StreamEventType) String() string {
	switch t {
	case StreamEventMetadata:
		return "metadata"
	case StreamEventValues:
		return "values"
	case StreamEventUpdates:
		return "updates"
	case StreamEventMessage:
		return "messages"
	case StreamEventError:
		return "error"
	case StreamEventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// MetadataEvent is the first frame of a run, carrying the identifiers
// assigned by the service. This is where a pending thread learns its id.
type MetadataEvent struct {
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`
}

// NodePartial is the partial state emitted by a single graph node.
// Pointer fields distinguish "absent" from "present but empty".
type NodePartial struct {
	Messages []Message          `json:"messages,omitempty"`
	Todos    *[]TodoItem        `json:"todos,omitempty"`
	Files    *map[string]string `json:"files,omitempty"`
}

// UpdatesEvent maps node names to the partial state each produced.
type UpdatesEvent map[string]NodePartial

// ErrorEvent reports a remote failure terminating the run.
type ErrorEvent struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StreamEvent holds a parsed stream frame with its classified type.
// Only ONE of the payload pointers will be non-nil based on EventType.
type StreamEvent struct {
	EventType StreamEventType
	Raw       json.RawMessage // preserved for re-parsing if needed

	// Only ONE of these will be non-nil based on EventType
	Metadata *MetadataEvent
	Values   *ThreadState
	Updates  UpdatesEvent
	Message  *Message
	Error    *ErrorEvent
}

// ClassifyStreamEvent parses a raw frame and returns a classified event.
// It uses two-pass parsing: first extracting the discriminator, then
// parsing the data payload into the correct concrete type.
func ClassifyStreamEvent(frame []byte) (*StreamEvent, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	// First pass: extract discriminator
	var envelope struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse discriminator: %w", err)
	}

	result := &StreamEvent{Raw: envelope.Data}

	// Second pass: parse into the concrete type
	switch envelope.Event {
	case "metadata":
		result.EventType = StreamEventMetadata
		result.Metadata = &MetadataEvent{}
		if err := json.Unmarshal(envelope.Data, result.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata event: %w", err)
		}
	case "values":
		result.EventType = StreamEventValues
		result.Values = &ThreadState{}
		if err := json.Unmarshal(envelope.Data, result.Values); err != nil {
			return nil, fmt.Errorf("failed to parse values event: %w", err)
		}
	case "updates":
		result.EventType = StreamEventUpdates
		if err := json.Unmarshal(envelope.Data, &result.Updates); err != nil {
			return nil, fmt.Errorf("failed to parse updates event: %w", err)
		}
	case "messages", "messages/partial", "messages/complete":
		result.EventType = StreamEventMessage
		result.Message = &Message{}
		if err := json.Unmarshal(envelope.Data, result.Message); err != nil {
			return nil, fmt.Errorf("failed to parse message event: %w", err)
		}
	case "error":
		result.EventType = StreamEventError
		result.Error = &ErrorEvent{}
		if err := json.Unmarshal(envelope.Data, result.Error); err != nil {
			return nil, fmt.Errorf("failed to parse error event: %w", err)
		}
	case "end":
		result.EventType = StreamEventEnd
	default:
		result.EventType = StreamEventUnknown
	}

	return result, nil
}
