package crypto

import (
	"encoding/json"
	"fmt"
)

// PayloadVersion is the current message payload format version.
const PayloadVersion = 1

// Payload is the plaintext message structure serialized before encryption.
//
// New fields extend the struct without protocol changes; decoders ignore
// fields they do not know.
type Payload struct {
	Version int    `json:"v"`
	Text    string `json:"text"`
}

// EncodePayload serializes a payload, stamping the current version if unset.
func EncodePayload(payload Payload) ([]byte, error) {
	if payload.Version == 0 {
		payload.Version = PayloadVersion
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal message payload: %w", err)
	}
	return raw, nil
}

// DecodePayload parses a decrypted payload. Payloads written before
// versioning carry no version field and are treated as version 1.
func DecodePayload(raw []byte) (Payload, error) {
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Payload{}, fmt.Errorf("parse message payload: %w", err)
	}
	if payload.Version == 0 {
		payload.Version = PayloadVersion
	}
	return payload, nil
}
