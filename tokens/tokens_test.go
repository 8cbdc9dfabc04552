package tokens

import (
	"testing"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/speakstudio/client"
)

func TestCount(t *testing.T) {
	n, err := Count("")
	Tassert(t, err == nil && n == 0, "got %d %v", n, err)

	n, err = Count("Hello")
	Tassert(t, err == nil, "count: %v", err)
	Tassert(t, n == 1, "expected 1 token, got %d", n)

	short, err := Count("Nice to meet you.")
	Tassert(t, err == nil, "count: %v", err)
	long, err := Count("Nice to meet you. I've been studying English more seriously recently.")
	Tassert(t, err == nil, "count: %v", err)
	Tassert(t, long > short, "expected %d > %d", long, short)
}

func TestCountMessages(t *testing.T) {
	n, err := CountMessages(nil)
	Tassert(t, err == nil && n == 0, "got %d %v", n, err)

	msgs := []client.ChatMsg{
		{Role: client.RoleUser, Content: "Hello"},
	}
	n, err = CountMessages(msgs)
	Tassert(t, err == nil, "count: %v", err)
	// framing + "user" + "Hello" + priming
	Tassert(t, n == perMessage+1+1+perReply, "got %d", n)

	msgs = append(msgs, client.ChatMsg{Role: client.RoleAssistant, Content: "Hi there, how are you?"})
	m, err := CountMessages(msgs)
	Tassert(t, err == nil, "count: %v", err)
	Tassert(t, m > n+perMessage, "expected %d > %d", m, n+perMessage)
}
