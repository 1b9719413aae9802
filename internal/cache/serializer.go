package cache

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/oscarmunoz1/trazo-back-sub000/internal/types"
)

// NewSerializer builds the serializer named in config. An empty kind selects
// JSON.
func NewSerializer(kind string) (types.Serializer, error) {
	switch kind {
	case "", "json":
		return NewJSONSerializer(), nil
	case "msgpack":
		return NewMsgpackSerializer(), nil
	default:
		return nil, fmt.Errorf("%w: unknown serializer %q", types.ErrInvalidConfig, kind)
	}
}

// JSONSerializer implements Serializer using JSON encoding.
type JSONSerializer struct{}

// NewJSONSerializer creates a new JSON serializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// Marshal serializes a value to JSON bytes.
func (s *JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes JSON bytes into the destination.
func (s *JSONSerializer) Unmarshal(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}

// MsgpackSerializer implements Serializer using MessagePack encoding. It
// produces smaller envelopes than JSON for payload-heavy datasets at the
// cost of opaque stored bytes.
type MsgpackSerializer struct{}

// NewMsgpackSerializer creates a new MessagePack serializer.
func NewMsgpackSerializer() *MsgpackSerializer {
	return &MsgpackSerializer{}
}

// Marshal serializes a value to MessagePack bytes.
func (s *MsgpackSerializer) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Unmarshal deserializes MessagePack bytes into the destination.
func (s *MsgpackSerializer) Unmarshal(data []byte, dest any) error {
	return msgpack.Unmarshal(data, dest)
}

var (
	_ types.Serializer = (*JSONSerializer)(nil)
	_ types.Serializer = (*MsgpackSerializer)(nil)
)
