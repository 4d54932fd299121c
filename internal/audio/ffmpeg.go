package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"pushtalk/internal/domain"
	"pushtalk/internal/logging"
	"pushtalk/internal/ports"
)

// FFmpegAccess captures microphone PCM through an ffmpeg subprocess. It is
// the fallback backend for hosts where PortAudio is unavailable.
type FFmpegAccess struct {
	command string
	log     *zap.Logger
}

func NewFFmpegAccess(command string) *FFmpegAccess {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFmpegAccess{command: command, log: logging.L("ffmpeg")}
}

func (a *FFmpegAccess) Acquire(ctx context.Context, cfg ports.AudioConfig) (ports.MicStream, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
	}
	if cfg.NoiseSuppression {
		args = append(args, "-af", "afftdn")
	}
	args = append(args, "-f", "s16le", "-")

	cmd := exec.CommandContext(ctx, a.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// An immediate exit means the device was refused, not that capture
	// started and failed later.
	select {
	case err := <-waitErr:
		detail := bytes.TrimSpace(stderr.Bytes())
		if err == nil {
			err = errors.New("ffmpeg exited before capture started")
		}
		return nil, classifyStderr(err, string(detail))
	case <-time.After(250 * time.Millisecond):
	}

	a.log.Debug("ffmpeg capture started",
		zap.String("inputFormat", cfg.InputFormat),
		zap.String("inputDevice", cfg.InputDevice),
		zap.Bool("noiseSuppression", cfg.NoiseSuppression),
	)

	return &ffmpegStream{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

// classifyStderr maps a refused device to the permission error class using
// the diagnostics ffmpeg printed before exiting.
func classifyStderr(err error, detail string) error {
	combined := err.Error() + " " + detail
	if classified := classifyAcquireErr(errors.New(combined)); errors.Is(classified, domain.ErrDeviceDenied) {
		return classified
	}
	if detail != "" {
		return fmt.Errorf("%w: %s", err, detail)
	}
	return err
}

type ffmpegStream struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	closeOnce sync.Once
	closeErr  error
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.closeErr = normalizeExitErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.closeErr = normalizeExitErr(err)
			}
		}

		if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) && s.closeErr == nil {
			s.closeErr = err
		}

		if s.closeErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.closeErr = fmt.Errorf("%w: %s", s.closeErr, bytes.TrimSpace(s.stderr.Bytes()))
		}
	})

	return s.closeErr
}

// normalizeExitErr drops the exit status of an interrupted ffmpeg; being
// told to stop is not a capture failure.
func normalizeExitErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
