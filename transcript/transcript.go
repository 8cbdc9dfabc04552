package transcript

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/speakstudio/client"
)

// Entry is one chat turn in the transcript file.
type Entry struct {
	Time         time.Time   `json:"time"`
	Session      string      `json:"session"`
	Conversation string      `json:"conversation"`
	Role         client.Role `json:"role"`
	Content      string      `json:"content"`
	// Fallback is true for assistant turns that were generated
	// locally because the completion service had no answer.
	Fallback bool `json:"fallback,omitempty"`
}

// Log appends chat turns to a JSON-lines transcript file.  Several
// processes may share one file; appends are serialized with a lock
// file next to it.
type Log struct {
	path    string
	Session string
}

// New returns a Log writing to path with a fresh session ID.
func New(path string) *Log {
	return &Log{path: path, Session: uuid.NewString()}
}

// Path returns the transcript file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes msgs to the transcript.  fallback marks assistant
// turns that were produced locally.
func (l *Log) Append(conversation string, fallback bool, msgs ...client.ChatMsg) (err error) {
	defer Return(&err)
	lock := flock.New(l.path + ".lock")
	Debug("locking %s...", lock.Path())
	err = lock.Lock()
	Ck(err)
	defer lock.Unlock()

	fh, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	Ck(err)
	defer fh.Close()

	enc := json.NewEncoder(fh)
	now := time.Now().UTC()
	for _, msg := range msgs {
		e := Entry{
			Time:         now,
			Session:      l.Session,
			Conversation: conversation,
			Role:         msg.Role,
			Content:      msg.Content,
			Fallback:     fallback && msg.Role == client.RoleAssistant,
		}
		err = enc.Encode(&e)
		Ck(err)
	}
	return
}

// Read returns every entry in the transcript at path.  A missing file
// is an empty transcript.
func Read(path string) (entries []Entry, err error) {
	defer Return(&err)
	lock := flock.New(path + ".lock")
	fh, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	Ck(err)
	defer fh.Close()
	err = lock.RLock()
	Ck(err)
	defer lock.Unlock()

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var e Entry
		err = json.Unmarshal(scanner.Bytes(), &e)
		Ck(err, "parsing %s", path)
		entries = append(entries, e)
	}
	err = scanner.Err()
	Ck(err)
	return
}

// Session returns the turns of one session in order.
func Session(entries []Entry, session string) (msgs []client.ChatMsg) {
	for _, e := range entries {
		if e.Session == session {
			msgs = append(msgs, client.ChatMsg{Role: e.Role, Content: e.Content})
		}
	}
	return
}
