package usage

import (
	"path/filepath"
	"testing"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/speakstudio/kv"
)

func TestRecord(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "usage.db")
	s, err := Open(fn)
	Tassert(t, err == nil, "open: %v", err)

	for i := 1; i <= 3; i++ {
		n, err := s.Record(Turn{Conversation: "daily", PromptTokens: 10, ReplyTokens: 5, Answered: i != 2})
		Tassert(t, err == nil, "record: %v", err)
		Tassert(t, n == uint64(i), "expected count %d, got %d", i, n)
	}
	n, err := s.Record(Turn{Conversation: "roleplay::hotel::formal", PromptTokens: 1, Answered: true})
	Tassert(t, err == nil && n == 1, "got %d %v", n, err)
	err = s.Close()
	Tassert(t, err == nil)

	// counters persist across reopening the store
	s, err = Open(fn)
	Tassert(t, err == nil, "reopen: %v", err)
	defer s.Close()

	n, err = s.Messages("daily")
	Tassert(t, err == nil && n == 3, "got %d %v", n, err)
	n, err = s.Messages("never")
	Tassert(t, err == nil && n == 0, "got %d %v", n, err)

	totals, err := s.Totals()
	Tassert(t, err == nil, "totals: %v", err)
	Tassert(t, totals[Calls] == 4, "calls: %d", totals[Calls])
	Tassert(t, totals[Replies] == 3, "replies: %d", totals[Replies])
	Tassert(t, totals[Fallbacks] == 1, "fallbacks: %d", totals[Fallbacks])
	Tassert(t, totals[PromptTokens] == 31, "prompt tokens: %d", totals[PromptTokens])
	Tassert(t, totals[ReplyTokens] == 15, "reply tokens: %d", totals[ReplyTokens])

	convs, err := s.Conversations()
	Tassert(t, err == nil, "conversations: %v", err)
	keys := Sorted(convs)
	Tassert(t, len(keys) == 2 && keys[0] == "daily", "got %v", keys)
}

func TestNewerSchema(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "usage.db")
	db, err := kv.Open(fn, 0)
	Ck(err)
	err = db.Update(func(tx *kv.Tx) error {
		return tx.PutUint("meta", "schema", SchemaVersion+1)
	})
	Ck(err)
	err = db.Close()
	Ck(err)

	_, err = Open(fn)
	Tassert(t, err != nil, "expected error opening a newer schema")
}

func TestReset(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "usage.db"))
	Tassert(t, err == nil, "open: %v", err)
	defer s.Close()

	for i := 0; i < 2; i++ {
		_, err = s.Record(Turn{Conversation: "daily::en", Answered: true})
		Tassert(t, err == nil, "record: %v", err)
	}
	_, err = s.Record(Turn{Conversation: "ask", Answered: true})
	Tassert(t, err == nil, "record: %v", err)

	n, err := s.Reset("daily::en")
	Tassert(t, err == nil && n == 2, "got %d %v", n, err)
	n, err = s.Messages("daily::en")
	Tassert(t, err == nil && n == 0, "got %d %v", n, err)
	n, err = s.Messages("ask")
	Tassert(t, err == nil && n == 1, "other conversations are kept: %d %v", n, err)
	convs, err := s.Conversations()
	Tassert(t, err == nil && len(convs) == 1, "got %v %v", convs, err)
	totals, err := s.Totals()
	Tassert(t, err == nil && totals[Calls] == 3, "totals are kept: %v %v", totals, err)

	// resetting an unknown conversation is a no-op
	n, err = s.Reset("never")
	Tassert(t, err == nil && n == 0, "got %d %v", n, err)

	// the next turn starts counting again
	n, err = s.Record(Turn{Conversation: "daily::en", Answered: true})
	Tassert(t, err == nil && n == 1, "got %d %v", n, err)
}
