package sound

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// decodeReply turns encoded reply audio into 16-bit little-endian PCM plus
// its sample rate and channel count.
func decodeReply(data []byte, format string) ([]byte, int, int, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "mp3":
		return decodeMP3(data)
	case "wav":
		return decodeWAV(data)
	default:
		return nil, 0, 0, fmt.Errorf("unsupported reply format %q", format)
	}
}

func decodeMP3(data []byte) ([]byte, int, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode mp3 reply: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read mp3 samples: %w", err)
	}

	// go-mp3 always emits 16-bit stereo.
	return pcm, decoder.SampleRate(), 2, nil
}

func decodeWAV(data []byte) ([]byte, int, int, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("reply is not a valid wav file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode wav reply: %w", err)
	}
	if buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, 0, fmt.Errorf("wav reply contained no samples")
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}

	return pcm, buf.Format.SampleRate, buf.Format.NumChannels, nil
}
