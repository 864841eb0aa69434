package storage

import "encoding/json"

// encodeJSON/decodeJSON replace the teacher's gob codec: row types embed
// domain values (uint256-backed amounts, fixed-size uids) that implement
// json.Marshaler/Unmarshaler, and JSON keeps the persisted format
// readable when inspecting a pebble snapshot by hand.
func encodeJSON(v any) ([]byte, error) { return json.Marshal(v) }
func decodeJSON(b []byte, v any) error { return json.Unmarshal(b, v) }
