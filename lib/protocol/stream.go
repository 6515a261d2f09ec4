// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize is the default per-message limit of a Reader. Real
// messages are a few hundred bytes.
const MaxMessageSize = 64 * 1024

// Reader decodes a stream of messages.
type Reader struct {
	source  *limitedSource
	decoder *json.Decoder
	limit   int64
}

// NewReader returns a Reader over r that rejects messages larger than
// MaxMessageSize. The Reader buffers; do not read from r directly
// afterwards.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, MaxMessageSize)
}

// NewReaderSize is NewReader with a per-message limit of limit bytes,
// counted from the end of the previous message.
func NewReaderSize(r io.Reader, limit int) *Reader {
	if limit < 1 {
		panic(fmt.Sprintf("protocol: invalid message size limit %d", limit))
	}
	source := &limitedSource{r: r}
	return &Reader{
		source:  source,
		decoder: json.NewDecoder(source),
		limit:   int64(limit),
	}
}

// Read returns the next message. A *ProtocolError means the object was
// consumed but rejected; any other error ends the stream. A message
// over the size limit returns ErrMessageTooLarge.
func (r *Reader) Read() (Message, error) {
	// The decoder buffers ahead, so the bound is on the stream offset
	// rather than on bytes read since the last call.
	r.source.bound = r.decoder.InputOffset() + r.limit

	var raw json.RawMessage
	if err := r.decoder.Decode(&raw); err != nil {
		return Message{}, err
	}

	var wire wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Message{}, &ProtocolError{Err: ErrInvalidField, cause: err}
	}
	return fromWire(wire)
}

// limitedSource refuses to read past bound bytes of the stream.
type limitedSource struct {
	r     io.Reader
	read  int64
	bound int64
}

func (s *limitedSource) Read(p []byte) (int, error) {
	remaining := s.bound - s.read
	if remaining <= 0 {
		return 0, ErrMessageTooLarge
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := s.r.Read(p)
	s.read += int64(n)
	return n, err
}

// Writer encodes messages onto a stream.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write sends message as one compact JSON object and a newline, in a
// single write to the underlying stream.
func (w *Writer) Write(message Message) error {
	data, err := Marshal(message)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing %s: %w", message.Type, err)
	}
	return nil
}

// Marshal returns the compact JSON encoding of message without a
// trailing newline.
func Marshal(message Message) ([]byte, error) {
	data, err := json.Marshal(toWire(message))
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", message.Type, err)
	}
	return data, nil
}

// Unmarshal decodes exactly one message from data. Errors follow the
// same split as Reader.Read.
func Unmarshal(data []byte) (Message, error) {
	if !json.Valid(data) {
		return Message{}, fmt.Errorf("protocol: message is not valid JSON")
	}
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, &ProtocolError{Err: ErrInvalidField, cause: err}
	}
	return fromWire(wire)
}
