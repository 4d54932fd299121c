package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"pushtalk/internal/domain"
	"pushtalk/internal/logging"
	"pushtalk/internal/ports"
)

const defaultFramesPerBuffer = 512

// PortAudioAccess acquires the default system microphone through PortAudio.
type PortAudioAccess struct {
	framesPerBuffer int
	log             *zap.Logger
}

func NewPortAudioAccess() *PortAudioAccess {
	return &PortAudioAccess{
		framesPerBuffer: defaultFramesPerBuffer,
		log:             logging.L("portaudio"),
	}
}

func (a *PortAudioAccess) Acquire(ctx context.Context, cfg ports.AudioConfig) (ports.MicStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, classifyAcquireErr(err)
	}

	in := make([]int16, a.framesPerBuffer*cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), a.framesPerBuffer, in)
	if err != nil {
		portaudio.Terminate()
		return nil, classifyAcquireErr(err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		portaudio.Terminate()
		return nil, classifyAcquireErr(err)
	}

	a.log.Debug("microphone stream opened",
		zap.Int("sampleRate", cfg.SampleRate),
		zap.Int("channels", cfg.Channels),
	)

	return &paStream{stream: stream, in: in}, nil
}

type paStream struct {
	stream  *portaudio.Stream
	in      []int16
	pending []byte

	closeOnce sync.Once
	closeErr  error
}

func (s *paStream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		if err := s.stream.Read(); err != nil {
			return 0, err
		}
		buf := make([]byte, len(s.in)*2)
		for i, sample := range s.in {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
		}
		s.pending = buf
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *paStream) Close() error {
	s.closeOnce.Do(func() {
		if err := s.stream.Stop(); err != nil {
			s.closeErr = err
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
		portaudio.Terminate()
	})
	return s.closeErr
}

// classifyAcquireErr distinguishes a permission-style rejection from an
// ordinary device failure so the UI can show a remediation message.
func classifyAcquireErr(err error) error {
	if err == nil {
		return nil
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "denied") ||
		strings.Contains(lower, "permission") ||
		strings.Contains(lower, "not authorized") {
		return fmt.Errorf("%w: %v", domain.ErrDeviceDenied, err)
	}
	return err
}
