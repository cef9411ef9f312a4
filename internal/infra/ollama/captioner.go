package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// ErrCaptionFailed is the stable, user-facing failure for any transport or
// model error during caption generation.
var ErrCaptionFailed = errors.New("The AI model failed to generate a description.")

const captionPrompt = "Describe the action taking place across this ordered sequence of " +
	"video frames in one or two vivid sentences. Be specific about what is happening. " +
	"Respond with the description only, no preamble or commentary."

// Captioner generates descriptions for frame sequences with a local vision
// model served by Ollama.
type Captioner struct {
	client *api.Client
	model  string
	logger *zap.Logger
}

func NewCaptioner(host, model string, logger *zap.Logger) (*Captioner, error) {
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host %q: %w", host, err)
	}
	return &Captioner{
		client: api.NewClient(base, http.DefaultClient),
		model:  model,
		logger: logger,
	}, nil
}

func (c *Captioner) Describe(ctx context.Context, images [][]byte) (string, error) {
	if len(images) == 0 {
		return "", ErrCaptionFailed
	}

	attachments := make([]api.ImageData, len(images))
	for i, img := range images {
		attachments[i] = api.ImageData(img)
	}

	stream := false
	req := &api.ChatRequest{
		Model:  c.model,
		Stream: &stream,
		Messages: []api.Message{{
			Role:    "user",
			Content: captionPrompt,
			Images:  attachments,
		}},
	}

	var out strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		c.logger.Warn("caption generation failed",
			zap.String("model", c.model),
			zap.Int("frames", len(images)),
			zap.Error(err),
		)
		return "", ErrCaptionFailed
	}

	description := strings.TrimSpace(out.String())
	if description == "" {
		c.logger.Warn("caption model returned empty response", zap.String("model", c.model))
		return "", ErrCaptionFailed
	}
	return description, nil
}
