// Package tokens counts tokens the way the OpenAI chat models do, so
// that callers can report usage without asking the service.
package tokens

import (
	"sync"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/speakstudio/client"
	"github.com/tiktoken-go/tokenizer"
)

// Each chat message costs a few tokens of framing on top of its
// content, and every reply is primed with a few more.
const (
	perMessage = 3
	perReply   = 3
)

var (
	codec   tokenizer.Codec
	initErr error
	once    sync.Once
)

// Init loads the tokenizer.  It is called automatically on first use.
func Init() (err error) {
	once.Do(func() {
		codec, initErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return initErr
}

// Tokens returns the tokens for a text segment.
func Tokens(text string) (toks []string, err error) {
	defer Return(&err)
	err = Init()
	Ck(err)
	_, toks, err = codec.Encode(text)
	Ck(err)
	return
}

// Count returns the number of tokens in a string.
func Count(text string) (count int, err error) {
	defer Return(&err)
	toks, err := Tokens(text)
	Ck(err)
	count = len(toks)
	return
}

// CountMessages estimates the prompt tokens for a conversation,
// including per-message framing and reply priming.
func CountMessages(msgs []client.ChatMsg) (count int, err error) {
	defer Return(&err)
	for _, msg := range msgs {
		n, err := Count(msg.Content)
		Ck(err)
		r, err := Count(string(msg.Role))
		Ck(err)
		count += perMessage + n + r
	}
	if len(msgs) > 0 {
		count += perReply
	}
	return
}
