// Package openai implements client.ChatClient on top of the OpenAI
// chat completions API.
//
// The connection handle is built lazily from the resolved API key and
// cached for the life of the process.  Every failure, whether a
// missing key, an unusable backend, a transport error or an API
// error, is reported to the caller as client.Absent().  Diagnostics go
// to goadapt's Debug channel; set DEBUG=1 to see them.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	gptLib "github.com/sashabaranov/go-openai"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/speakstudio/client"
	"github.com/stevegt/speakstudio/config"
)

var (
	ErrNoKey           = errors.New("OPENAI_API_KEY is not set")
	ErrNoBackend       = errors.New("no completion backend available")
	ErrBadBaseURL      = errors.New("invalid OPENAI_BASE_URL")
	ErrNoChoices       = errors.New("no choices in response")
	ErrInvalidMessages = errors.New("invalid messages")
)

// Completer is the part of the go-openai client that we use to
// complete a chat.  *gptLib.Client implements it.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req gptLib.ChatCompletionRequest) (gptLib.ChatCompletionResponse, error)
}

// ModelLister is an optional capability of a Completer.
type ModelLister interface {
	ListModels(ctx context.Context) (gptLib.ModelsList, error)
}

// Dialer builds a Completer bound to apiKey.  It is the capability
// check for the completion backend: a nil Dialer, or one that returns
// an error, means the backend can't be used right now.
type Dialer func(apiKey string) (Completer, error)

// DefaultDialer returns a go-openai client for apiKey, pointed at
// OPENAI_BASE_URL if that is set.
func DefaultDialer(apiKey string) (c Completer, err error) {
	cfg := gptLib.DefaultConfig(apiKey)
	base := config.BaseURL()
	if base != "" {
		u, perr := url.Parse(base)
		if perr != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			err = fmt.Errorf("%w: %q", ErrBadBaseURL, base)
			return
		}
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	c = gptLib.NewClientWithConfig(cfg)
	return
}

// State is the lifecycle state of a Client's connection handle.
type State int32

const (
	Uninitialized State = iota
	Constructing
	Ready
	ConstructionFailed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Constructing:
		return "constructing"
	case Ready:
		return "ready"
	case ConstructionFailed:
		return "construction failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type handle struct {
	Completer
}

type errBox struct {
	err error
}

// Client is the completion client.  The zero value is not usable; call
// New.
//
// Client needs no locking.  Two goroutines constructing the handle at
// the same time may each build one; the last one stored wins, and
// either is fine to use.
type Client struct {
	dialer      Dialer
	keySource   func() (string, bool)
	modelSource func() string
	tempSource  func() float32

	handle  atomic.Pointer[handle]
	state   atomic.Int32
	lastErr atomic.Pointer[errBox]
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces DefaultDialer.  Passing nil makes the backend
// unavailable.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithKeySource replaces config.APIKey.
func WithKeySource(f func() (string, bool)) Option {
	return func(c *Client) { c.keySource = f }
}

// WithModelSource replaces config.DefaultModel.
func WithModelSource(f func() string) Option {
	return func(c *Client) { c.modelSource = f }
}

// WithTemperature fixes the sampling temperature instead of reading
// it from config.Temperature.
func WithTemperature(temp float32) Option {
	return func(c *Client) { c.tempSource = func() float32 { return temp } }
}

// New creates a Client.  No handle is built until the first Chat call.
func New(opts ...Option) *Client {
	c := &Client{
		dialer:      DefaultDialer,
		keySource:   config.APIKey,
		modelSource: config.DefaultModel,
		tempSource:  config.Temperature,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current handle state.
func (c *Client) State() State {
	if c.handle.Load() != nil {
		return Ready
	}
	return State(c.state.Load())
}

// LastError returns the reason the most recent Chat call returned
// absence, or nil if it succeeded.  It is for diagnostics only.
func (c *Client) LastError() error {
	b := c.lastErr.Load()
	if b == nil {
		return nil
	}
	return b.err
}

// getHandle returns the cached handle, constructing it if needed.  A
// failed construction is not cached, so the next call tries again.
func (c *Client) getHandle() (h Completer, err error) {
	if p := c.handle.Load(); p != nil {
		return p.Completer, nil
	}
	c.state.Store(int32(Constructing))
	defer func() {
		if err != nil {
			c.state.Store(int32(ConstructionFailed))
		}
	}()

	key, ok := c.keySource()
	if !ok {
		err = ErrNoKey
		return
	}
	if c.dialer == nil {
		err = ErrNoBackend
		return
	}
	h, err = c.dialer(key)
	if err != nil {
		return
	}
	if h == nil {
		err = ErrNoBackend
		return
	}
	Debug("openai: handle ready")
	c.handle.Store(&handle{h})
	c.state.Store(int32(Ready))
	return
}

// Chat sends msgs to the completion service and returns the first
// reply, or absence on any failure.  If model is empty the configured
// default model is used.
func (c *Client) Chat(msgs []client.ChatMsg, model string) client.Result {
	return c.ChatContext(context.Background(), msgs, model)
}

// ChatContext is Chat with a caller-supplied context.
func (c *Client) ChatContext(ctx context.Context, msgs []client.ChatMsg, model string) client.Result {
	text, err := c.complete(ctx, msgs, model)
	if err != nil {
		Debug("openai: chat failed: %v", err)
		c.lastErr.Store(&errBox{err})
		return client.Absent()
	}
	c.lastErr.Store(nil)
	return client.Present(text)
}

// complete does the work of ChatContext and reports why it failed.
func (c *Client) complete(ctx context.Context, msgs []client.ChatMsg, model string) (text string, err error) {
	err = client.Validate(msgs)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidMessages, err)
		return
	}

	h, err := c.getHandle()
	if err != nil {
		return
	}

	if model == "" {
		model = c.modelSource()
	}
	req := gptLib.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAI(msgs),
		Temperature: c.tempSource(),
	}
	Debug("sending to OpenAI: model %s, %d messages", model, len(msgs))

	resp, err := send(ctx, h, req)
	if err != nil {
		var apiErr *gptLib.APIError
		if errors.As(err, &apiErr) {
			Debug("openai: API error: status %d type %q: %s", apiErr.HTTPStatusCode, apiErr.Type, apiErr.Message)
		}
		return
	}
	if len(resp.Choices) == 0 {
		err = ErrNoChoices
		return
	}
	text = strings.TrimSpace(resp.Choices[0].Message.Content)
	Debug("response from OpenAI: %d chars, %d tokens", len(text), resp.Usage.TotalTokens)
	return
}

// send makes the service call.  A panic inside the handle is turned
// into an error so that it can't cross the Chat boundary.
func send(ctx context.Context, h Completer, req gptLib.ChatCompletionRequest) (resp gptLib.ChatCompletionResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completion service panicked: %v", r)
		}
	}()
	return h.CreateChatCompletion(ctx, req)
}

// toOpenAI converts chat turns to the go-openai message format.
func toOpenAI(msgs []client.ChatMsg) (omsgs []gptLib.ChatCompletionMessage) {
	for _, msg := range msgs {
		var role string
		switch msg.Role {
		case client.RoleSystem:
			role = gptLib.ChatMessageRoleSystem
		case client.RoleUser:
			role = gptLib.ChatMessageRoleUser
		case client.RoleAssistant:
			role = gptLib.ChatMessageRoleAssistant
		default:
			Assert(false, "unknown role: %q", msg.Role)
		}
		omsgs = append(omsgs, gptLib.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return
}

// ListModels returns the IDs of the models the service offers.  Unlike
// Chat it reports errors, since it isn't part of the fallback path.
func (c *Client) ListModels(ctx context.Context) (ids []string, err error) {
	defer Return(&err)
	h, err := c.getHandle()
	Ck(err)
	lister, ok := h.(ModelLister)
	if !ok {
		err = fmt.Errorf("%w: backend can't list models", ErrNoBackend)
		return
	}
	list, err := lister.ListModels(ctx)
	Ck(err)
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return
}

// Assert that Client implements client.ChatClient.
var _ client.ChatClient = (*Client)(nil)

var defaultClient atomic.Pointer[Client]

// Default returns the process-wide client, creating it on first use.
func Default() *Client {
	if c := defaultClient.Load(); c != nil {
		return c
	}
	defaultClient.CompareAndSwap(nil, New())
	return defaultClient.Load()
}

// Chat completes msgs using the process-wide client.
func Chat(msgs []client.ChatMsg, model string) client.Result {
	return Default().Chat(msgs, model)
}
