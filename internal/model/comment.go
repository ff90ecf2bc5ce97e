// Package model defines the verbatim data model synced to the analytics API.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimestampLayout is the wire format for comment timestamps: ISO-8601 with
// microsecond precision and a numeric UTC offset (never "Z").
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Namespaces for user property wire keys.
const (
	StringPropertyPrefix = "string:"
	NumberPropertyPrefix = "number:"
)

// ErrReservedPropertyName is returned when a user property uses a name the
// platform reserves for itself.
var ErrReservedPropertyName = errors.New("reserved user property name")

// reservedPropertyNames are set by the platform or the sync pipeline and may
// not be supplied by callers. "Source" in particular is injected by the client.
var reservedPropertyNames = map[string]bool{
	"conversation": true,
	"title":        true,
	"Source":       true,
}

// Comment represents a single verbatim to be synced.
//
// ID is an opaque, caller-supplied identifier, unique per dataset. Uniqueness
// is enforced by the remote service, not locally; re-uploading the same ID
// overwrites the previous comment, which makes sync idempotent.
type Comment struct {
	ID             string
	Timestamp      time.Time
	Text           string
	UserProperties []UserProperty
}

// UserProperty is client-specific metadata attached to a comment. It is not
// used for predictions, only for filtering and segmentation on the platform.
type UserProperty interface {
	// WireKey returns the namespaced key used in the JSON body.
	WireKey() string
	// WireValue returns the scalar value used in the JSON body.
	WireValue() any
	// PropertyName returns the un-namespaced property name.
	PropertyName() string
}

// StringProperty is a named string metadata value.
type StringProperty struct {
	Name  string
	Value string
}

// WireKey returns the namespaced key, e.g. "string:Username".
func (p StringProperty) WireKey() string { return StringPropertyPrefix + p.Name }

// WireValue returns the string value.
func (p StringProperty) WireValue() any { return p.Value }

// PropertyName returns the property name.
func (p StringProperty) PropertyName() string { return p.Name }

// NumberProperty is a named numeric metadata value.
type NumberProperty struct {
	Name  string
	Value float64
}

// WireKey returns the namespaced key, e.g. "number:NPS".
func (p NumberProperty) WireKey() string { return NumberPropertyPrefix + p.Name }

// WireValue returns the numeric value.
func (p NumberProperty) WireValue() any { return p.Value }

// PropertyName returns the property name.
func (p NumberProperty) PropertyName() string { return p.Name }

// EncodeUserProperties converts typed properties into the namespaced wire map.
// Reserved property names are rejected.
func EncodeUserProperties(props []UserProperty) (map[string]any, error) {
	if len(props) == 0 {
		return nil, nil
	}

	encoded := make(map[string]any, len(props))
	for _, p := range props {
		if reservedPropertyNames[p.PropertyName()] {
			return nil, fmt.Errorf("%w: %q", ErrReservedPropertyName, p.PropertyName())
		}
		encoded[p.WireKey()] = p.WireValue()
	}
	return encoded, nil
}

// wireComment mirrors the JSON object accepted by the sync endpoint.
// Field order matches the documented contract.
type wireComment struct {
	OriginalText   string         `json:"original_text"`
	Timestamp      string         `json:"timestamp"`
	ID             string         `json:"id"`
	UserProperties map[string]any `json:"user_properties,omitempty"`
}

func (c Comment) wire() (wireComment, error) {
	props, err := EncodeUserProperties(c.UserProperties)
	if err != nil {
		return wireComment{}, err
	}

	return wireComment{
		OriginalText:   c.Text,
		Timestamp:      c.Timestamp.Format(TimestampLayout),
		ID:             c.ID,
		UserProperties: props,
	}, nil
}

// MarshalJSON encodes the comment in the sync wire format.
func (c Comment) MarshalJSON() ([]byte, error) {
	w, err := c.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// SyncRequest is the body of a sync call. When Source is non-empty, every
// comment is tagged with it under the reserved "string:Source" property.
type SyncRequest struct {
	Comments []Comment
	Source   string
}

// MarshalJSON encodes the batch as {"comments":[...]}.
func (r SyncRequest) MarshalJSON() ([]byte, error) {
	wires := make([]wireComment, 0, len(r.Comments))
	for _, c := range r.Comments {
		w, err := c.wire()
		if err != nil {
			return nil, err
		}
		if r.Source != "" {
			if w.UserProperties == nil {
				w.UserProperties = make(map[string]any, 1)
			}
			w.UserProperties[StringPropertyPrefix+"Source"] = r.Source
		}
		wires = append(wires, w)
	}

	return json.Marshal(struct {
		Comments []wireComment `json:"comments"`
	}{Comments: wires})
}

// UnmarshalJSON decodes a comment from the sync wire format. Properties are
// rebuilt from their namespaced keys and sorted by key for determinism.
func (c *Comment) UnmarshalJSON(data []byte) error {
	var wire wireComment
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	ts, err := ParseTimestamp(wire.Timestamp)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", wire.Timestamp, err)
	}

	props, err := decodeUserProperties(wire.UserProperties)
	if err != nil {
		return err
	}

	c.ID = wire.ID
	c.Timestamp = ts
	c.Text = wire.OriginalText
	c.UserProperties = props
	return nil
}

func decodeUserProperties(encoded map[string]any) ([]UserProperty, error) {
	if len(encoded) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(encoded))
	for k := range encoded {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	props := make([]UserProperty, 0, len(keys))
	for _, k := range keys {
		switch {
		case strings.HasPrefix(k, StringPropertyPrefix):
			value, ok := encoded[k].(string)
			if !ok {
				return nil, fmt.Errorf("user property %q: expected string value", k)
			}
			props = append(props, StringProperty{
				Name:  strings.TrimPrefix(k, StringPropertyPrefix),
				Value: value,
			})
		case strings.HasPrefix(k, NumberPropertyPrefix):
			value, ok := encoded[k].(float64)
			if !ok {
				return nil, fmt.Errorf("user property %q: expected numeric value", k)
			}
			props = append(props, NumberProperty{
				Name:  strings.TrimPrefix(k, NumberPropertyPrefix),
				Value: value,
			})
		default:
			return nil, fmt.Errorf("user property %q: unknown namespace", k)
		}
	}
	return props, nil
}

// ParseTimestamp parses a wire timestamp. The API emits microsecond precision
// with numeric offsets, but responses are accepted in any RFC 3339 form.
func ParseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(TimestampLayout, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
