package sound

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"pushtalk/internal/logging"
)

const playbackFramesPerBuffer = 1024

// SpeakerPlayer decodes a reply and plays it through the default output
// device, blocking until playback completes or fails.
type SpeakerPlayer struct {
	framesPerBuffer int
	log             *zap.Logger
}

func NewSpeakerPlayer() *SpeakerPlayer {
	return &SpeakerPlayer{
		framesPerBuffer: playbackFramesPerBuffer,
		log:             logging.L("player"),
	}
}

func (p *SpeakerPlayer) Play(ctx context.Context, data []byte, format string) error {
	if len(data) == 0 {
		return errors.New("no reply audio to play")
	}

	pcm, sampleRate, channels, err := decodeReply(data, format)
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		return errors.New("reply audio decoded to zero samples")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize playback: %w", err)
	}
	defer portaudio.Terminate()

	out := make([]int16, p.framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), p.framesPerBuffer, out)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer stream.Stop()

	p.log.Debug("playback started",
		zap.String("format", format),
		zap.Int("sampleRate", sampleRate),
		zap.Int("channels", channels),
		zap.Int("pcmBytes", len(pcm)),
	)

	step := len(out) * 2
	for offset := 0; offset < len(pcm); offset += step {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := offset + step
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := pcm[offset:end]

		for i := range out {
			if i*2+1 < len(chunk) {
				out[i] = int16(binary.LittleEndian.Uint16(chunk[i*2:]))
			} else {
				out[i] = 0
			}
		}

		if err := stream.Write(); err != nil {
			return fmt.Errorf("output stream write failed: %w", err)
		}
	}

	return nil
}
