package customobject

import (
	"io"

	"github.com/annel0/customobjects/internal/logging"
	"github.com/annel0/customobjects/internal/metadata"
)

// sequenceRandom возвращает заданные значения по кругу
type sequenceRandom struct {
	values []float64
	i      int
}

func (s *sequenceRandom) Float64() float64 {
	v := s.values[s.i%len(s.values)]
	s.i++
	return v
}

func newTestHolder(kind Kind, loader metadata.Loader) *Holder {
	return NewHolder("Test", "/structures/Test.bo4", HolderOptions{
		Kind:   kind,
		Loader: loader,
		Logger: logging.NewWriterLogger("test", io.Discard, logging.ERROR),
	})
}

func mustParse(h *Holder, line string) Function {
	f, err := ParseFunction(h, line)
	if err != nil {
		panic(err)
	}
	return f
}

func testOptions(kind Kind) HolderOptions {
	return HolderOptions{
		Kind:   kind,
		Logger: logging.NewWriterLogger("test", io.Discard, logging.ERROR),
	}
}
