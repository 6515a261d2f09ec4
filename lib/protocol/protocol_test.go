// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/fap/lib/geo"
)

func TestMsgTypeValues(t *testing.T) {
	// The numeric values are the wire contract.
	want := map[MsgType]int{
		AssociationRequest:    1,
		AssociationAccepted:   2,
		AssociationRejected:   3,
		DesassociationRequest: 4,
		DesassociationAck:     5,
		GpsCoordinatesUpdate:  6,
		GpsCoordinatesAck:     7,
	}
	for msgType, value := range want {
		if int(msgType) != value {
			t.Errorf("%s = %d, want %d", msgType, int(msgType), value)
		}
		if !msgType.IsKnown() {
			t.Errorf("%s not known", msgType)
		}
	}
	for _, unknown := range []MsgType{0, 8, -1} {
		if unknown.IsKnown() {
			t.Errorf("%s reported as known", unknown)
		}
	}
}

func TestMarshalReplies(t *testing.T) {
	now := time.Date(2026, 10, 14, 8, 0, 1, 0, time.UTC)
	tests := []struct {
		name    string
		message Message
		want    string
	}{
		{"accepted", NewReply(254, AssociationAccepted), `{"userId":254,"msgType":2}`},
		{"rejected", NewReply(254, AssociationRejected), `{"userId":254,"msgType":3}`},
		{"desassociation ack", NewReply(254, DesassociationAck), `{"userId":254,"msgType":5}`},
		{"gps ack", NewGpsAck(254, now), `{"userId":254,"msgType":7,"gpsTimestamp":"2026-10-14T08:00:01Z"}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data, err := Marshal(test.message)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(data) != test.want {
				t.Errorf("Marshal = %s, want %s", data, test.want)
			}
		})
	}
}

func TestMarshalGpsUpdate(t *testing.T) {
	fix := geo.RawCoordinates{
		Latitude: 41.178, Longitude: -8.597, Altitude: 10,
		Timestamp: time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC),
	}
	data, err := Marshal(NewGpsUpdate(7, fix))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	coordinates, ok := generic["gpsCoordinates"].(map[string]any)
	if !ok {
		t.Fatalf("gpsCoordinates missing in %s", data)
	}
	if coordinates["lat"] != 41.178 || coordinates["timestamp"] != "2026-10-14T08:00:00Z" {
		t.Errorf("gpsCoordinates = %v", coordinates)
	}
	if _, present := generic["gpsTimestamp"]; present {
		t.Errorf("update carries gpsTimestamp: %s", data)
	}
}

func TestReaderBackToBackAndPrettyPrinted(t *testing.T) {
	stream := `{"userId":7,"msgType":1}{"userId":7,"msgType":4}
{
    "userId": 7,
    "msgType": 6,
    "gpsCoordinates": {
        "lat": 41.178,
        "lon": -8.597,
        "alt": 10,
        "timestamp": "2026-10-14T08:00:00Z"
    }
}
`
	reader := NewReader(strings.NewReader(stream))

	first, err := reader.Read()
	if err != nil || first.Type != AssociationRequest || first.UserID != 7 {
		t.Fatalf("first = %+v, %v", first, err)
	}
	second, err := reader.Read()
	if err != nil || second.Type != DesassociationRequest {
		t.Fatalf("second = %+v, %v", second, err)
	}
	third, err := reader.Read()
	if err != nil {
		t.Fatalf("third: %v", err)
	}
	if third.Type != GpsCoordinatesUpdate || third.Position.Latitude != 41.178 || third.Position.Altitude != 10 {
		t.Errorf("third = %+v", third)
	}
	if !third.Position.Timestamp.Equal(time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", third.Position.Timestamp)
	}

	if _, err := reader.Read(); !errors.Is(err, io.EOF) {
		t.Errorf("Read at end = %v, want io.EOF", err)
	}
}

func TestReaderSchemaErrorsAreRecoverable(t *testing.T) {
	tests := []struct {
		name   string
		object string
		want   error
	}{
		{"unknown msgType", `{"userId":7,"msgType":9}`, ErrUnknownMsgType},
		{"missing msgType", `{"userId":7}`, ErrMissingField},
		{"missing userId", `{"msgType":1}`, ErrMissingField},
		{"msgType wrong type", `{"userId":7,"msgType":"one"}`, ErrInvalidField},
		{"not an object", `[1,2,3]`, ErrInvalidField},
		{"update without coordinates", `{"userId":7,"msgType":6}`, ErrMissingField},
		{"update without altitude", `{"userId":7,"msgType":6,"gpsCoordinates":{"lat":1,"lon":2,"timestamp":"2026-10-14T08:00:00Z"}}`, ErrMissingField},
		{"update with bad timestamp", `{"userId":7,"msgType":6,"gpsCoordinates":{"lat":1,"lon":2,"alt":3,"timestamp":"yesterday"}}`, ErrInvalidField},
		{"ack without timestamp", `{"userId":254,"msgType":7}`, ErrMissingField},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// A valid message follows the bad one; the reader must
			// still deliver it.
			reader := NewReader(strings.NewReader(test.object + `{"userId":7,"msgType":1}`))

			_, err := reader.Read()
			if !IsProtocolError(err) {
				t.Fatalf("Read = %v, want *ProtocolError", err)
			}
			if !errors.Is(err, test.want) {
				t.Errorf("Read = %v, want wrapping %v", err, test.want)
			}

			next, err := reader.Read()
			if err != nil || next.Type != AssociationRequest {
				t.Errorf("message after schema error = %+v, %v", next, err)
			}
		})
	}
}

func TestReaderSyntaxErrorIsFatal(t *testing.T) {
	reader := NewReader(strings.NewReader(`{"userId":7,"msgType":}`))
	_, err := reader.Read()
	if err == nil {
		t.Fatal("Read succeeded on malformed JSON")
	}
	if IsProtocolError(err) {
		t.Errorf("malformed JSON reported as recoverable: %v", err)
	}
}

func TestReaderLimitIsPerMessage(t *testing.T) {
	association := `{"userId":7,"msgType":1}`
	stream := strings.Repeat(association+"\n", 5)
	reader := NewReaderSize(strings.NewReader(stream), 2*len(association))

	for index := range 5 {
		message, err := reader.Read()
		if err != nil {
			t.Fatalf("Read %d: %v", index, err)
		}
		if message.Type != AssociationRequest {
			t.Fatalf("Read %d type = %s, want %s", index, message.Type, AssociationRequest)
		}
	}
	if _, err := reader.Read(); err != io.EOF {
		t.Fatalf("Read after last message = %v, want io.EOF", err)
	}
}

func TestReaderRejectsOversizedMessage(t *testing.T) {
	padded := `{"userId":7,"msgType":1,"padding":"` + strings.Repeat("x", 200) + `"}`
	stream := `{"userId":7,"msgType":1}` + padded
	reader := NewReaderSize(strings.NewReader(stream), 64)

	if _, err := reader.Read(); err != nil {
		t.Fatalf("Read before oversized message: %v", err)
	}
	_, err := reader.Read()
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("Read = %v, want ErrMessageTooLarge", err)
	}
	if IsProtocolError(err) {
		t.Errorf("oversized message reported as recoverable: %v", err)
	}
}

func TestWriterAppendsNewline(t *testing.T) {
	var buffer bytes.Buffer
	writer := NewWriter(&buffer)
	if err := writer.Write(NewReply(254, AssociationAccepted)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := writer.Write(NewReply(254, DesassociationAck)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "{\"userId\":254,\"msgType\":2}\n{\"userId\":254,\"msgType\":5}\n"
	if buffer.String() != want {
		t.Errorf("stream = %q, want %q", buffer.String(), want)
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	now := time.Date(2026, 10, 14, 8, 0, 1, 0, time.UTC)
	var buffer bytes.Buffer
	if err := NewWriter(&buffer).Write(NewGpsAck(254, now)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	message, err := NewReader(&buffer).Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if message.Type != GpsCoordinatesAck || message.UserID != 254 || !message.ServerTime.Equal(now) {
		t.Errorf("round trip = %+v", message)
	}
}

func TestUnmarshal(t *testing.T) {
	message, err := Unmarshal([]byte(`{"userId":3,"msgType":4}`))
	if err != nil || message.Type != DesassociationRequest || message.UserID != 3 {
		t.Errorf("Unmarshal = %+v, %v", message, err)
	}
	if _, err := Unmarshal([]byte(`{`)); err == nil || IsProtocolError(err) {
		t.Errorf("Unmarshal of truncated JSON = %v, want non-protocol error", err)
	}
}

func TestProtocolErrorMessage(t *testing.T) {
	err := &ProtocolError{Type: GpsCoordinatesUpdate, Err: ErrMissingField, Field: "gpsCoordinates.lat"}
	want := "protocol: missing field gpsCoordinates.lat in gps-coordinates-update"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
