package client

import "fmt"

// ChatClient defines the interface for chat operations.  The
// presentation layer depends on this rather than on a concrete
// provider so that tests can substitute a fake.
//
// Chat never returns an error: every failure is reported as an
// absent Result, and callers render their own fallback.
type ChatClient interface {
	Chat(messages []ChatMsg, model string) Result
}

// Role is the speaker of a chat turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid returns true if r is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ChatMsg represents a single chat turn.
type ChatMsg struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Validate checks that msgs is a non-empty sequence of turns with
// recognized roles.  Empty content is allowed and passed through.
func Validate(msgs []ChatMsg) (err error) {
	if len(msgs) == 0 {
		return fmt.Errorf("no messages")
	}
	for i, msg := range msgs {
		if !msg.Role.Valid() {
			return fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}
	}
	return
}

// LastUser returns the content of the most recent user turn, or the
// empty string if there is none.
func LastUser(msgs []ChatMsg) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// Result is the outcome of a chat completion: either a present reply
// or absence.  The zero value is absent.
type Result struct {
	text    string
	present bool
}

// Present wraps a reply.
func Present(text string) Result {
	return Result{text: text, present: true}
}

// Absent returns the uniform "no answer" value.
func Absent() Result {
	return Result{}
}

// Get returns the reply and whether it is present.
func (r Result) Get() (text string, ok bool) {
	return r.text, r.present
}

// IsPresent returns true if the result carries a reply.
func (r Result) IsPresent() bool {
	return r.present
}

// OrElse returns the reply if present, otherwise fallback.
func (r Result) OrElse(fallback string) string {
	if r.present {
		return r.text
	}
	return fallback
}

func (r Result) String() string {
	if !r.present {
		return "Absent"
	}
	return fmt.Sprintf("Present(%q)", r.text)
}
