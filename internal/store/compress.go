package store

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdEncoder/zstdDecoder are shared, as in the teacher's
// internal/history/writer.go: a single *zstd.Encoder (and Decoder) is
// safe for concurrent use and expensive to construct per call.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("store: zstd encoder init: %v", err))
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("store: zstd decoder init: %v", err))
	}
}

func compress(raw []byte) []byte {
	return zstdEncoder.EncodeAll(raw, nil)
}

func decompress(compressed []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("store: zstd decode: %w", err)
	}
	return out, nil
}
