package usage

import (
	"fmt"
	"sort"
	"time"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/speakstudio/kv"
)

// Store keeps usage counters in a local kv database.  Callers update
// it around each chat call; the completion client never touches it.
//
// Buckets:
// - name: meta, key: "schema", value: schema version counter
// - name: messages, key: conversation key, value: turns exchanged
// - name: totals, key: counter name, value: running total
type Store struct {
	kv *kv.Db
}

// SchemaVersion is the on-disk layout written by this code.
const SchemaVersion = 1

// Names of the counters kept in the totals bucket.
const (
	Calls        = "calls"
	Replies      = "replies"
	Fallbacks    = "fallbacks"
	PromptTokens = "prompt_tokens"
	ReplyTokens  = "reply_tokens"
)

var buckets = []string{"meta", "messages", "totals"}

// Open opens the store, creating the db and its buckets if they don't
// exist.
func Open(path string) (s *Store, err error) {
	defer Return(&err)
	s = &Store{}
	s.kv, err = kv.Open(path, 10*time.Second)
	Ck(err)
	err = s.kv.Update(func(tx *kv.Tx) (err error) {
		defer Return(&err)
		for _, b := range buckets {
			_, err = tx.MakeBucket(b)
			Ck(err)
		}
		ver, err := tx.GetUint("meta", "schema")
		Ck(err)
		switch {
		case ver == 0:
			err = tx.PutUint("meta", "schema", SchemaVersion)
			Ck(err)
		case ver > SchemaVersion:
			err = fmt.Errorf("usage db %s is schema version %d, but this program only knows version %d", path, ver, SchemaVersion)
			return
		}
		return
	})
	if err != nil {
		s.kv.Close()
		return nil, err
	}
	return
}

// Close closes the database.
func (s *Store) Close() error {
	return s.kv.Close()
}

// Turn describes one chat call for accounting.
type Turn struct {
	// Conversation identifies the conversation, e.g. "daily" or
	// "roleplay::hotel::formal".
	Conversation string
	PromptTokens int
	ReplyTokens  int
	// Answered is false when the completion service gave no answer
	// and the caller fell back to a local reply.
	Answered bool
}

// Record adds turn to the counters and returns the conversation's new
// message count.
func (s *Store) Record(turn Turn) (count uint64, err error) {
	defer Return(&err)
	Assert(turn.Conversation != "", "empty conversation key")
	err = s.kv.Update(func(tx *kv.Tx) (err error) {
		defer Return(&err)
		count, err = tx.Incr("messages", turn.Conversation, 1)
		Ck(err)
		_, err = tx.Incr("totals", Calls, 1)
		Ck(err)
		if turn.Answered {
			_, err = tx.Incr("totals", Replies, 1)
		} else {
			_, err = tx.Incr("totals", Fallbacks, 1)
		}
		Ck(err)
		_, err = tx.Incr("totals", PromptTokens, uint64(turn.PromptTokens))
		Ck(err)
		_, err = tx.Incr("totals", ReplyTokens, uint64(turn.ReplyTokens))
		Ck(err)
		return
	})
	Ck(err)
	return
}

// Messages returns the number of turns recorded for a conversation.
func (s *Store) Messages(conversation string) (n uint64, err error) {
	err = s.kv.View(func(tx *kv.Tx) (err error) {
		n, err = tx.GetUint("messages", conversation)
		return
	})
	return
}

// Reset forgets the message counter for a conversation and returns
// the count it had.  The totals are kept.
func (s *Store) Reset(conversation string) (count uint64, err error) {
	var tx *kv.Tx
	defer func() {
		if err != nil && tx != nil {
			tx.Rollback()
		}
	}()
	defer Return(&err)
	tx, err = s.kv.Begin(true)
	Ck(err)
	count, err = tx.GetUint("messages", conversation)
	Ck(err)
	err = tx.Delete("messages", conversation)
	Ck(err)
	err = tx.Commit()
	if err != nil {
		// a failed commit has already closed the transaction
		tx = nil
	}
	Ck(err)
	return
}

// Totals returns every counter in the totals bucket.
func (s *Store) Totals() (totals map[string]uint64, err error) {
	return s.readAll("totals")
}

// Conversations returns the message count for every conversation.
func (s *Store) Conversations() (convs map[string]uint64, err error) {
	return s.readAll("messages")
}

func (s *Store) readAll(bucket string) (m map[string]uint64, err error) {
	m = make(map[string]uint64)
	err = s.kv.View(func(tx *kv.Tx) (err error) {
		defer Return(&err)
		keys, err := tx.List(bucket)
		Ck(err)
		var names []string
		for k := range keys {
			names = append(names, k)
		}
		for _, k := range names {
			m[k], err = tx.GetUint(bucket, k)
			Ck(err)
		}
		return
	})
	return
}

// Sorted returns the keys of m in order.
func Sorted(m map[string]uint64) (keys []string) {
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return
}
