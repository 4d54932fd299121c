package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pushtalk/internal/domain"
	"pushtalk/internal/ports"
)

// encoders maps each encoding that can actually be produced locally to its
// constructor. WAV is the only container with a native Go encoder in the
// dependency set; webm/mp4 stay in the preference list for wire
// compatibility but report as unsupported.
var encoders = map[domain.Encoding]func() ports.Encoder{
	domain.EncodingWAV: func() ports.Encoder { return wavEncoder{} },
}

// Supported reports whether recordings can be finalized in the encoding.
func Supported(encoding domain.Encoding) bool {
	_, ok := encoders[encoding]
	return ok
}

// Negotiate returns an encoder for the first supported entry of the
// preference list, falling back to WAV when none is supported.
func Negotiate(preferred []domain.Encoding) ports.Encoder {
	for _, encoding := range preferred {
		if make, ok := encoders[encoding]; ok {
			return make()
		}
	}
	return wavEncoder{}
}

// wavEncoder finalizes 16-bit little-endian PCM chunks into a WAV container.
type wavEncoder struct{}

func (wavEncoder) Encoding() domain.Encoding { return domain.EncodingWAV }

func (wavEncoder) Finalize(chunks [][]byte, cfg ports.AudioConfig) ([]byte, error) {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total == 0 {
		return nil, nil
	}

	samples := make([]int, 0, total/2)
	for _, chunk := range chunks {
		for i := 0; i+1 < len(chunk); i += 2 {
			samples = append(samples, int(int16(binary.LittleEndian.Uint16(chunk[i:i+2]))))
		}
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}

	buf := &seekBuffer{}
	enc := wav.NewEncoder(buf, sampleRate, 16, channels, 1)
	err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize wav container: %w", err)
	}

	return buf.Bytes(), nil
}

// seekBuffer is an in-memory io.WriteSeeker for the wav encoder, which
// seeks back to patch the header on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if grow := b.pos + len(p) - len(b.data); grow > 0 {
		b.data = append(b.data, make([]byte, grow)...)
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("invalid seek whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}
	b.pos = int(next)
	return next, nil
}

func (b *seekBuffer) Bytes() []byte { return b.data }
