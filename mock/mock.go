package mock

import (
	"context"
	"sync"

	gptLib "github.com/sashabaranov/go-openai"
)

// Client is a mock completion backend for testing.
// It implements openai.Completer and returns pre-configured responses
// based on the model name.  Tests configure it with SetResponse and
// SetError, and inspect the requests it received with Requests.
type Client struct {
	mu        sync.Mutex
	Responses map[string]string // model name -> response
	Err       error
	Models    []string
	requests  []gptLib.ChatCompletionRequest
}

// NewClient creates a new mock client.
func NewClient() *Client {
	return &Client{
		Responses: make(map[string]string),
	}
}

// SetResponse sets the response for a given model name.
func (c *Client) SetResponse(model, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses[model] = response
}

// SetError makes every subsequent call fail with err.  Pass nil to
// clear it.
func (c *Client) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Err = err
}

// CreateChatCompletion records req and returns the configured response
// for req.Model, or a default response if none has been configured.
func (c *Client) CreateChatCompletion(ctx context.Context, req gptLib.ChatCompletionRequest) (resp gptLib.ChatCompletionResponse, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.Err != nil {
		return resp, c.Err
	}
	if err = ctx.Err(); err != nil {
		return
	}
	response, ok := c.Responses[req.Model]
	if !ok {
		response = "default mock response"
	}
	resp = gptLib.ChatCompletionResponse{
		Model: req.Model,
		Choices: []gptLib.ChatCompletionChoice{
			{
				Index: 0,
				Message: gptLib.ChatCompletionMessage{
					Role:    gptLib.ChatMessageRoleAssistant,
					Content: response,
				},
				FinishReason: gptLib.FinishReasonStop,
			},
		},
	}
	return
}

// ListModels returns the configured model list.
func (c *Client) ListModels(ctx context.Context) (list gptLib.ModelsList, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.Models {
		list.Models = append(list.Models, gptLib.Model{ID: id})
	}
	return
}

// Requests returns a copy of the requests received so far.
func (c *Client) Requests() []gptLib.ChatCompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]gptLib.ChatCompletionRequest(nil), c.requests...)
}

// Calls returns the number of completion requests received.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}
