package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestCommentMarshal_WireContract(t *testing.T) {
	comment := Comment{
		ID:        "0123456789abcdef",
		Timestamp: time.Date(2011, 12, 11, 1, 2, 3, 0, time.UTC),
		Text:      "company is awesome!",
	}

	got, err := json.Marshal(comment)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"original_text":"company is awesome!","timestamp":"2011-12-11T01:02:03.000000+00:00","id":"0123456789abcdef"}`
	if string(got) != want {
		t.Errorf("wire body mismatch\ngot:  %s\nwant: %s", got, want)
	}
}

func TestSyncRequestMarshal(t *testing.T) {
	request := SyncRequest{
		Comments: []Comment{
			{
				ID:        "0123456789abcdef",
				Timestamp: time.Date(2011, 12, 11, 1, 2, 3, 0, time.UTC),
				Text:      "company is awesome!",
			},
		},
	}

	got, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"comments":[{"original_text":"company is awesome!","timestamp":"2011-12-11T01:02:03.000000+00:00","id":"0123456789abcdef"}]}`
	if string(got) != want {
		t.Errorf("sync body mismatch\ngot:  %s\nwant: %s", got, want)
	}
}

func TestSyncRequestMarshal_EmptyBatch(t *testing.T) {
	got, err := json.Marshal(SyncRequest{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(got) != `{"comments":[]}` {
		t.Errorf(`expected {"comments":[]}, got %s`, got)
	}
}

func TestSyncRequestMarshal_SourceTag(t *testing.T) {
	request := SyncRequest{
		Comments: []Comment{
			{
				ID:        "abcd",
				Timestamp: time.Date(2017, 1, 2, 13, 45, 21, 0, time.UTC),
				Text:      "I love your company!",
				UserProperties: []UserProperty{
					NumberProperty{Name: "NPS", Value: 4},
					StringProperty{Name: "Username", Value: "alex@example.com"},
				},
			},
		},
		Source: "Zendesk",
	}

	got, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Map keys marshal in sorted order, so the body is deterministic.
	wantProps := `"user_properties":{"number:NPS":4,"string:Source":"Zendesk","string:Username":"alex@example.com"}`
	if !strings.Contains(string(got), wantProps) {
		t.Errorf("expected %s in body, got %s", wantProps, got)
	}
}

func TestSyncRequestMarshal_SourceTagWithoutProperties(t *testing.T) {
	request := SyncRequest{
		Comments: []Comment{
			{ID: "abcd", Timestamp: time.Date(2017, 1, 2, 13, 45, 21, 0, time.UTC), Text: "hello"},
		},
		Source: "Feefo",
	}

	got, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(got), `"user_properties":{"string:Source":"Feefo"}`) {
		t.Errorf("expected injected source property, got %s", got)
	}
}

func TestCommentRoundTrip(t *testing.T) {
	original := Comment{
		ID:        "6665656462616364",
		Timestamp: time.Date(2017, 1, 2, 13, 45, 21, 123456000, time.UTC),
		Text:      "I love your company!",
		UserProperties: []UserProperty{
			NumberProperty{Name: "NPS", Value: 4},
			StringProperty{Name: "Username", Value: "alex@example.com"},
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Comment
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, original.ID)
	}
	if decoded.Text != original.Text {
		t.Errorf("Text = %q, want %q", decoded.Text, original.Text)
	}
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	// Decoded properties are sorted by wire key; the input already is.
	if !reflect.DeepEqual(decoded.UserProperties, original.UserProperties) {
		t.Errorf("UserProperties = %#v, want %#v", decoded.UserProperties, original.UserProperties)
	}
}

func TestEncodeUserProperties_ReservedNames(t *testing.T) {
	tests := []struct {
		name string
		prop UserProperty
	}{
		{"conversation", StringProperty{Name: "conversation", Value: "x"}},
		{"title", StringProperty{Name: "title", Value: "x"}},
		{"Source", StringProperty{Name: "Source", Value: "x"}},
		{"number_Source", NumberProperty{Name: "Source", Value: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeUserProperties([]UserProperty{tt.prop})
			if !errors.Is(err, ErrReservedPropertyName) {
				t.Errorf("expected ErrReservedPropertyName, got %v", err)
			}
		})
	}
}

func TestEncodeUserProperties_Namespacing(t *testing.T) {
	encoded, err := EncodeUserProperties([]UserProperty{
		NumberProperty{Name: "Order Value ($)", Value: 430.2},
		StringProperty{Name: "Platform", Value: "iPhone"},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if got := encoded["number:Order Value ($)"]; got != 430.2 {
		t.Errorf("number property = %v, want 430.2", got)
	}
	if got := encoded["string:Platform"]; got != "iPhone" {
		t.Errorf("string property = %v, want iPhone", got)
	}
}

func TestTimestampFormat_NumericOffset(t *testing.T) {
	// UTC must render as +00:00, never Z.
	utc := time.Date(2011, 12, 11, 1, 2, 3, 0, time.UTC)
	if got := utc.Format(TimestampLayout); got != "2011-12-11T01:02:03.000000+00:00" {
		t.Errorf("UTC format = %q", got)
	}

	cet := time.Date(2011, 12, 11, 1, 2, 3, 0, time.FixedZone("CET", 3600))
	if got := cet.Format(TimestampLayout); got != "2011-12-11T01:02:03.000000+01:00" {
		t.Errorf("CET format = %q", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		value string
		want  time.Time
	}{
		{"2011-12-11T01:02:03.000000+00:00", time.Date(2011, 12, 11, 1, 2, 3, 0, time.UTC)},
		{"2011-12-11T01:02:03.123456+00:00", time.Date(2011, 12, 11, 1, 2, 3, 123456000, time.UTC)},
		{"2011-12-11T01:02:03Z", time.Date(2011, 12, 11, 1, 2, 3, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := ParseTimestamp(tt.value)
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", tt.value, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}

	if _, err := ParseTimestamp("not-a-timestamp"); err == nil {
		t.Error("expected error for invalid timestamp")
	}
}

func TestCommentUnmarshal_UnknownNamespace(t *testing.T) {
	data := []byte(`{"original_text":"x","timestamp":"2011-12-11T01:02:03.000000+00:00","id":"ab","user_properties":{"date:When":"2011"}}`)

	var c Comment
	if err := json.Unmarshal(data, &c); err == nil {
		t.Error("expected error for unknown property namespace")
	}
}
