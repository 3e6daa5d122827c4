// Package nodeid encodes and decodes Relay-style global node IDs.
package nodeid

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Check reports whether (entity, id) can be encoded. Both parts must be
// non-empty valid UTF-8; within that domain Decode(Encode(entity, id)) returns
// the pair unchanged.
func Check(entity, id string) error {
	switch {
	case entity == "":
		return errors.New("invalid id: missing entity name")
	case id == "":
		return errors.New("invalid id: missing internal id")
	case !utf8.ValidString(entity) || !utf8.ValidString(id):
		return errors.New("invalid id: not valid UTF-8")
	}
	return nil
}

// Encode marshals the entity name and internal id into a base64-encoded JSON
// array. It returns "" for pairs Check rejects.
func Encode(entity, id string) string {
	if Check(entity, id) != nil {
		return ""
	}
	data, err := json.Marshal([]string{entity, id})
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses a global node ID and returns the entity name and internal id.
func Decode(nodeID string) (entity string, id string, err error) {
	raw, err := base64.StdEncoding.DecodeString(nodeID)
	if err != nil {
		return "", "", fmt.Errorf("invalid id: %w", err)
	}
	var payload []string
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", "", fmt.Errorf("invalid id: %w", err)
	}
	if len(payload) != 2 {
		return "", "", errors.New("invalid id: expected entity and internal id")
	}
	if err := Check(payload[0], payload[1]); err != nil {
		return "", "", err
	}
	return payload[0], payload[1], nil
}

// DecodeFor decodes nodeID and checks that it belongs to the expected entity.
func DecodeFor(expectedEntity, nodeID string) (string, error) {
	entity, id, err := Decode(nodeID)
	if err != nil {
		return "", err
	}
	if entity != expectedEntity {
		return "", fmt.Errorf("invalid id: expected %s id, got %s id", expectedEntity, entity)
	}
	return id, nil
}
