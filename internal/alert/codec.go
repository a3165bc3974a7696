package alert

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Content types accepted on alerts.new.
const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

// Encode serializes an event in the requested content type. The protobuf form
// is a google.protobuf.Struct carrying the same fields as the JSON form.
func Encode(event *Event, contentType string) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert: %w", err)
	}

	switch normalizeContentType(contentType) {
	case ContentTypeJSON:
		return data, nil
	case ContentTypeProtobuf:
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("failed to build alert struct: %w", err)
		}
		st, err := structpb.NewStruct(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to build alert struct: %w", err)
		}
		payload, err := proto.Marshal(st)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal alert: %w", err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}
}

// Decode parses an event from its wire form. An empty content type is read as JSON.
func Decode(data []byte, contentType string) (*Event, error) {
	switch normalizeContentType(contentType) {
	case ContentTypeJSON:
	case ContentTypeProtobuf:
		var st structpb.Struct
		if err := proto.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("failed to unmarshal protobuf alert: %w", err)
		}
		raw, err := json.Marshal(st.AsMap())
		if err != nil {
			return nil, fmt.Errorf("failed to convert protobuf alert: %w", err)
		}
		data = raw
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
	}
	return &event, nil
}

func normalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" {
		return ContentTypeJSON
	}
	return ct
}
