package perception

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
)

// ErrScriptExhausted is returned once every scripted reply has been used.
var ErrScriptExhausted = errors.New("scripted client has no replies left")

// ScriptedReply is one canned answer.
type ScriptedReply struct {
	Text string
	Err  error
}

// ScriptedClient replays canned replies in order.
type ScriptedClient struct {
	mu        sync.Mutex
	replies   []ScriptedReply
	prompts   []string
	responder func(prompt string) (string, error)
}

// NewScriptedClient queues replies in order.
func NewScriptedClient(replies ...string) *ScriptedClient {
	c := &ScriptedClient{}
	for _, r := range replies {
		c.replies = append(c.replies, ScriptedReply{Text: r})
	}
	return c
}

// NewResponderClient answers every prompt with fn once the queue is empty.
func NewResponderClient(fn func(prompt string) (string, error)) *ScriptedClient {
	return &ScriptedClient{responder: fn}
}

// Push queues another reply.
func (c *ScriptedClient) Push(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, ScriptedReply{Text: text})
}

// PushError queues a failing reply.
func (c *ScriptedClient) PushError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, ScriptedReply{Err: err})
}

// Prompts returns every prompt received so far.
func (c *ScriptedClient) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// Name returns "scripted".
func (c *ScriptedClient) Name() string { return "scripted" }

// Generate returns the next queued reply.
func (c *ScriptedClient) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	if len(c.replies) > 0 {
		r := c.replies[0]
		c.replies = c.replies[1:]
		c.mu.Unlock()
		return r.Text, r.Err
	}
	fn := c.responder
	c.mu.Unlock()

	if fn != nil {
		return fn(prompt)
	}
	return "", ErrScriptExhausted
}

// GenerateStream yields the next queued reply line by line.
func (c *ScriptedClient) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		text, err := c.Generate(ctx, prompt)
		if err != nil {
			yield("", err)
			return
		}
		for _, chunk := range strings.SplitAfter(text, "\n") {
			if chunk == "" {
				continue
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}
