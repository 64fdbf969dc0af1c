package llm

import (
	"context"
	"fmt"
	"time"

	"dripcast/config"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const (
	maxAttempts  = 3
	retryBackoff = 5 * time.Second
	runPollEvery = time.Second
	runTimeout   = 2 * time.Minute
)

// Client wraps the OpenAI API for the two capabilities the pipeline
// needs: assistant-thread content generation and one-shot chat
// completions.
type Client struct {
	api         *openai.Client
	model       string
	assistantID string
	fileID      string
	logger      *logrus.Logger
}

func NewClient(cfg config.OpenAIConfig, logger *logrus.Logger) *Client {
	return &Client{
		api:         openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		assistantID: cfg.AssistantID,
		fileID:      cfg.FileID,
		logger:      logger,
	}
}

// Complete runs a single chat completion with bounded retry.
func (c *Client) Complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	var out string
	err := c.withRetry(ctx, "chat completion", func() error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	return out, err
}

// CompleteJSON runs a chat completion in JSON mode.
func (c *Client) CompleteJSON(ctx context.Context, prompt string, temperature float32) (string, error) {
	var out string
	err := c.withRetry(ctx, "json completion", func() error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	return out, err
}

// CreateThread opens a new assistant conversation thread.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var id string
	err := c.withRetry(ctx, "create thread", func() error {
		thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
		if err != nil {
			return err
		}
		id = thread.ID
		return nil
	})
	return id, err
}

// RunAssistant posts the prompt to the thread, runs the assistant with
// the knowledge file attached, polls the run to completion and returns
// the assistant's reply text.
func (c *Client) RunAssistant(ctx context.Context, threadID, prompt string) (string, error) {
	if c.assistantID == "" || threadID == "" {
		return "", fmt.Errorf("assistant or thread id not configured")
	}

	req := openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: prompt,
	}
	if c.fileID != "" {
		req.Attachments = []openai.ThreadAttachment{
			{FileID: c.fileID, Tools: []openai.ThreadAttachmentTool{{Type: "file_search"}}},
		}
	}
	if _, err := c.api.CreateMessage(ctx, threadID, req); err != nil {
		return "", fmt.Errorf("failed to post message to thread %s: %w", threadID, err)
	}

	run, err := c.api.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: c.assistantID})
	if err != nil {
		return "", fmt.Errorf("failed to start run on thread %s: %w", threadID, err)
	}

	deadline := time.Now().Add(runTimeout)
	for run.Status != openai.RunStatusCompleted {
		switch run.Status {
		case openai.RunStatusFailed, openai.RunStatusExpired, openai.RunStatusCancelled:
			return "", fmt.Errorf("assistant run %s ended with status %s", run.ID, run.Status)
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("assistant run %s timed out after %s", run.ID, runTimeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(runPollEvery):
		}
		run, err = c.api.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return "", fmt.Errorf("failed to poll run %s: %w", run.ID, err)
		}
	}

	limit := 1
	order := "desc"
	msgs, err := c.api.ListMessage(ctx, threadID, &limit, &order, nil, nil, &run.ID)
	if err != nil {
		return "", fmt.Errorf("failed to list messages on thread %s: %w", threadID, err)
	}
	if len(msgs.Messages) == 0 || len(msgs.Messages[0].Content) == 0 || msgs.Messages[0].Content[0].Text == nil {
		return "", fmt.Errorf("assistant run %s produced no text", run.ID)
	}
	return msgs.Messages[0].Content[0].Text.Value, nil
}

// withRetry runs fn up to maxAttempts times with increasing delay
// between attempts.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		c.logger.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
		}).Warnf("openai call failed: %v", err)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, maxAttempts, err)
}
