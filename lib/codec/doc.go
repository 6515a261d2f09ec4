// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the shared CBOR configuration of the control
// socket.
//
// Two serialization formats are in use, with a clear boundary:
//
//   - JSON for the access point protocol that users speak over TCP
//     (lib/protocol) and for fapctl --json output.
//   - CBOR for the control socket between fapctl and fapd.
//
// Every CBOR producer goes through this package so encodings are
// identical. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2); the same logical value always produces the same bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tag Rules
//
//   - `cbor` tag: the type is only ever CBOR, such as the control
//     envelope.
//   - `json` tag: the type may be JSON or CBOR. fxamacker/cbor falls
//     back to json tags when cbor tags are absent, so one tag controls
//     both. Control action payloads use json tags because fapctl
//     prints them as JSON.
//
// Never put both tags on one field.
package codec
