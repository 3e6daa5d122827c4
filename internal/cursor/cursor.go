// Package cursor encodes and decodes Relay-style connection cursors.
// Cursors are opaque base64-encoded JSON objects carrying the connection's
// node type and the zero-based offset of the edge in the filtered, ordered list.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

type payload struct {
	Version  int    `json:"v"`
	TypeName string `json:"t"`
	Offset   int    `json:"o"`
}

// EncodeOffset builds an opaque cursor for the edge at offset.
func EncodeOffset(typeName string, offset int) string {
	data, err := json.Marshal(payload{Version: 1, TypeName: typeName, Offset: offset})
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeOffset parses a cursor and confirms it was issued for typeName.
func DecodeOffset(typeName, raw string) (int, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor: %w", err)
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, fmt.Errorf("invalid cursor format")
	}
	if p.Version != 1 {
		return 0, fmt.Errorf("invalid cursor format: unsupported version %d", p.Version)
	}
	if p.TypeName != typeName {
		return 0, fmt.Errorf("cursor type mismatch: expected %s, got %s", typeName, p.TypeName)
	}
	if p.Offset < 0 {
		return 0, fmt.Errorf("invalid cursor: negative offset")
	}
	return p.Offset, nil
}
