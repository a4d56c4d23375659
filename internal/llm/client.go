// Package llm invokes the chat completion model that synthesizes answers
// from retrieved context. Transient provider failures are retried with
// exponential backoff before surfacing a language model error.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"

	"github.com/jcarver/docchat/internal/domain"
)

// DefaultModel is the chat model used for answer synthesis.
const DefaultModel = openai.ChatModelGPT4o

// requestTimeout bounds a single completion attempt.
const requestTimeout = 60 * time.Second

// Client produces chat completions with the configured model.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a completion client around an existing OpenAI client.
// An empty model selects DefaultModel.
func NewClient(client *openai.Client, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: client,
		model:  model,
	}
}

// Complete sends a system instruction and user prompt to the chat model and
// returns its text output. Rate limits, server errors, and network failures
// retry with exponential backoff; exhaustion surfaces a language model error.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	var answer string

	operation := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		resp, err := c.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
			Model: c.model,
		})
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("completion returned no choices"))
		}
		answer = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", domain.E(domain.KindLanguageModel, "complete", err)
	}
	return answer, nil
}

// isTransient reports whether the error is worth retrying.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
