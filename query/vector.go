package query

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gsaluja9/aperturedb-go/protocol"
)

// EncodeVector lays vec out as little-endian IEEE 754 float32 values, the
// blob form the server stores descriptors in.
func EncodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("query: descriptor blob length %d is not a multiple of 4", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

func checkVector(field string, vec []float32) error {
	if len(vec) == 0 {
		return protocol.Violationf(field, "empty vector")
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return protocol.Violationf(field, "component %d is not finite", i)
		}
	}
	return nil
}
