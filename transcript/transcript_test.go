package transcript

import (
	"path/filepath"
	"sync"
	"testing"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/speakstudio/client"
)

func TestAppendRead(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "transcript.log")

	entries, err := Read(fn)
	Tassert(t, err == nil && len(entries) == 0, "missing file: %v %v", entries, err)

	a := New(fn)
	b := New(fn)
	Tassert(t, a.Session != b.Session, "sessions should differ")
	Tassert(t, a.Path() == fn, "got path %s", a.Path())

	err = a.Append("daily", false,
		client.ChatMsg{Role: client.RoleUser, Content: "Hello!"},
		client.ChatMsg{Role: client.RoleAssistant, Content: "Hi!\nHow are you?"},
	)
	Tassert(t, err == nil, "append: %v", err)
	err = b.Append("roleplay::hotel::formal", true,
		client.ChatMsg{Role: client.RoleUser, Content: "I have a reservation."},
		client.ChatMsg{Role: client.RoleAssistant, Content: "(local reply)"},
	)
	Tassert(t, err == nil, "append: %v", err)

	entries, err = Read(fn)
	Tassert(t, err == nil, "read: %v", err)
	Tassert(t, len(entries) == 4, "expected 4 entries, got %d", len(entries))
	Tassert(t, entries[1].Content == "Hi!\nHow are you?", "got %q", entries[1].Content)
	Tassert(t, !entries[1].Fallback, "entry 1 should not be a fallback")
	Tassert(t, !entries[2].Fallback, "user turns are never fallbacks")
	Tassert(t, entries[3].Fallback, "entry 3 should be a fallback")

	msgs := Session(entries, a.Session)
	Tassert(t, len(msgs) == 2 && msgs[0].Content == "Hello!", "got %v", msgs)
}

func TestConcurrentAppend(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "transcript.log")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := New(fn)
			for j := 0; j < 5; j++ {
				err := l.Append("daily", false, client.ChatMsg{Role: client.RoleUser, Content: "line"})
				Tassert(t, err == nil, "append: %v", err)
			}
		}()
	}
	wg.Wait()
	entries, err := Read(fn)
	Tassert(t, err == nil, "read: %v", err)
	Tassert(t, len(entries) == 40, "expected 40 entries, got %d", len(entries))
}
