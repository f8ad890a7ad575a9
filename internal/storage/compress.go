package storage

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecOnce sync.Once
	codecErr  error
)

func initCodec() error {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
	})
	return codecErr
}

// compress сжимает значение перед записью в постоянное хранилище
func compress(data []byte) ([]byte, error) {
	if err := initCodec(); err != nil {
		return nil, fmt.Errorf("storage: zstd: %w", err)
	}
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// decompress распаковывает значение; повреждённые данные - ErrCorrupt
func decompress(data []byte) ([]byte, error) {
	if err := initCodec(); err != nil {
		return nil, fmt.Errorf("storage: zstd: %w", err)
	}
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, nil
}
