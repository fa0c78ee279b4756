// Package rpc exposes the scanner and the scorer as a gRPC service. Messages
// are plain Go structs carried by a JSON codec, so no protobuf generation
// step is needed on either side.
package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype of the JSON codec.
const CodecName = "json"

// JSONCodec marshals gRPC messages as JSON.
type JSONCodec struct{}

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

// Marshal implements encoding.Codec
func (JSONCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec marshal: %w", err)
	}
	return data, nil
}

// Unmarshal implements encoding.Codec
func (JSONCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec unmarshal: %w", err)
	}
	return nil
}

// Name implements encoding.Codec
func (JSONCodec) Name() string {
	return CodecName
}
