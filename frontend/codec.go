// Package frontend is the minimal gRPC front door in front of backend's
// GlobalMapping (§12's "typically wrapped by an outer async wrapper"
// supplement): insert_imu, insert_submap, find_overlapping_submaps,
// optimize, save, and load as RPCs, matching the teacher's thin
// server.go/client.go pair in front of each service.
//
// There is no .proto/protoc step in this module, so the wire format is a
// hand-registered grpc/encoding.Codec rather than protobuf-generated
// marshalers; see codecName below.
package frontend

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype this package's codec registers
// under; clients select it per-call via grpc.CallContentSubtype(codecName).
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements google.golang.org/grpc/encoding.Codec: every request
// and response message in this package is a plain JSON-tagged struct, so
// encoding/json is the whole implementation.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }
