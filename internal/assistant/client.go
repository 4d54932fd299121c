package assistant

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"pushtalk/internal/domain"
	"pushtalk/internal/logging"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultReplyFormat = "mp3"
	genericFailure     = "The assistant could not process your request."
)

// Config controls the assistant boundary endpoint.
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Client sends finished recordings across the assistant boundary and
// returns the synthesized reply. The service side (transcription, response
// generation, speech synthesis) is opaque.
type Client struct {
	http *resty.Client
	cfg  Config
	log  *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	http := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		http.SetAuthToken(cfg.Token)
	}

	return &Client{http: http, cfg: cfg, log: logging.L("assistant")}
}

type converseRequest struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

type converseResponse struct {
	Audio       string `json:"audio"`
	AudioFormat string `json:"audioFormat"`
	Transcript  string `json:"transcript"`
	Response    string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) Converse(ctx context.Context, artifact domain.Artifact) (domain.Reply, error) {
	var (
		success converseResponse
		failure errorResponse
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(converseRequest{
			Audio:  base64.StdEncoding.EncodeToString(artifact.Data),
			Format: string(artifact.Encoding),
		}).
		SetResult(&success).
		SetError(&failure).
		Post(c.cfg.URL)
	if err != nil {
		c.log.Warn("assistant request failed", zap.Error(err))
		return domain.Reply{}, fmt.Errorf("%s", genericFailure)
	}

	if !resp.IsSuccess() {
		message := strings.TrimSpace(failure.Error)
		if message == "" {
			message = genericFailure
		}
		c.log.Warn("assistant returned an error",
			zap.Int("status", resp.StatusCode()),
			zap.String("message", message),
		)
		return domain.Reply{}, fmt.Errorf("%s", message)
	}

	if strings.TrimSpace(success.Audio) == "" {
		c.log.Warn("assistant reply missing audio", zap.Int("status", resp.StatusCode()))
		return domain.Reply{}, fmt.Errorf("%s", genericFailure)
	}

	audio, err := base64.StdEncoding.DecodeString(success.Audio)
	if err != nil || len(audio) == 0 {
		c.log.Warn("assistant reply audio not decodable", zap.Error(err))
		return domain.Reply{}, fmt.Errorf("%s", genericFailure)
	}

	format := strings.TrimSpace(success.AudioFormat)
	if format == "" {
		format = defaultReplyFormat
	}

	return domain.Reply{
		Audio:      audio,
		Format:     format,
		Transcript: success.Transcript,
		Response:   success.Response,
	}, nil
}
