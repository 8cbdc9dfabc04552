package kv

import (
	"encoding/binary"
	"fmt"
	"time"

	. "github.com/stevegt/goadapt"
	bolt "go.etcd.io/bbolt"
)

// Db is a generic key-value database that supports transactions and
// buckets.  Keys and bucket names are strings.  Values are byte
// arrays. This struct is an adapter for bolt.
type Db struct {
	bdb *bolt.DB
}

// Open opens a database, creating it if it doesn't exist.  It waits up
// to timeout for another process to release the file.
func Open(path string, timeout time.Duration) (db *Db, err error) {
	defer Return(&err)
	db = &Db{}
	opts := &bolt.Options{Timeout: timeout}
	db.bdb, err = bolt.Open(path, 0600, opts)
	Ck(err, "opening %s", path)
	return
}

// Close closes the db.
func (db *Db) Close() (err error) {
	defer Return(&err)
	err = db.bdb.Close()
	Ck(err)
	return
}

// Path returns the path of the database file.
func (db *Db) Path() string {
	return db.bdb.Path()
}

// Begin starts a transaction
func (db *Db) Begin(writable bool) (tx *Tx, err error) {
	defer Return(&err)
	btx, err := db.bdb.Begin(writable)
	Ck(err)
	tx = &Tx{btx}
	return
}

// Update runs fn in a writable transaction, committing if fn returns
// nil and rolling back otherwise.
func (db *Db) Update(fn func(tx *Tx) error) error {
	return db.bdb.Update(func(btx *bolt.Tx) error {
		return fn(&Tx{btx})
	})
}

// View runs fn in a read-only transaction.
func (db *Db) View(fn func(tx *Tx) error) error {
	return db.bdb.View(func(btx *bolt.Tx) error {
		return fn(&Tx{btx})
	})
}

// Tx is a generic transaction.  This struct is an adapter for bolt.
type Tx struct {
	btx *bolt.Tx
}

// Rollback rolls back a transaction
func (tx *Tx) Rollback() (err error) {
	defer Return(&err)
	err = tx.btx.Rollback()
	Ck(err)
	return
}

// Commit commits a transaction
func (tx *Tx) Commit() (err error) {
	defer Return(&err)
	err = tx.btx.Commit()
	Ck(err)
	return
}

// Put adds or replaces a record in the given bucket, creating the
// bucket if needed.
func (tx *Tx) Put(bucket string, key string, value []byte) (err error) {
	defer Return(&err)
	b := tx.btx.Bucket([]byte(bucket))
	if b == nil {
		Debug("creating bucket %s", bucket)
		b, err = tx.MakeBucket(bucket)
		Ck(err)
	}
	err = b.Put([]byte(key), value)
	Ck(err)
	return
}

// Get retrieves a record from the given bucket. Returns a nil value
// if the key or bucket does not exist or if the key is a nested bucket.
// The value is a copy and remains valid after the transaction ends.
func (tx *Tx) Get(bucket string, key string) (value []byte, err error) {
	b := tx.btx.Bucket([]byte(bucket))
	if b == nil {
		return
	}
	v := b.Get([]byte(key))
	if v != nil {
		value = append([]byte(nil), v...)
	}
	return
}

// Delete removes a record from the given bucket.
func (tx *Tx) Delete(bucket string, key string) (err error) {
	defer Return(&err)
	b := tx.btx.Bucket([]byte(bucket))
	if b == nil {
		return
	}
	err = b.Delete([]byte(key))
	Ck(err)
	return
}

// List generates a list of all keys in the given bucket.  The caller
// must drain the channel before ending the transaction.
func (tx *Tx) List(bucket string) (keys chan string, err error) {
	keys = make(chan string)
	b := tx.btx.Bucket([]byte(bucket))
	if b == nil {
		close(keys)
		return
	}
	go func() {
		defer close(keys)
		b.ForEach(func(k, v []byte) error {
			keys <- string(k)
			return nil
		})
	}()
	return
}

// MakeBucket creates a new bucket.
func (tx *Tx) MakeBucket(bucket string) (b *bolt.Bucket, err error) {
	defer Return(&err)
	b, err = tx.btx.CreateBucketIfNotExists([]byte(bucket))
	Ck(err)
	return
}

// GetUint returns a counter stored with PutUint, or 0 if it isn't set.
func (tx *Tx) GetUint(bucket, key string) (n uint64, err error) {
	v, err := tx.Get(bucket, key)
	if err != nil || v == nil {
		return
	}
	if len(v) != 8 {
		err = fmt.Errorf("%s/%s: not a counter (%d bytes)", bucket, key, len(v))
		return
	}
	n = binary.BigEndian.Uint64(v)
	return
}

// PutUint stores n as an 8-byte big-endian counter.
func (tx *Tx) PutUint(bucket, key string, n uint64) (err error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return tx.Put(bucket, key, buf)
}

// Incr adds delta to a counter and returns the new value.
func (tx *Tx) Incr(bucket, key string, delta uint64) (n uint64, err error) {
	defer Return(&err)
	n, err = tx.GetUint(bucket, key)
	Ck(err)
	n += delta
	err = tx.PutUint(bucket, key, n)
	Ck(err)
	return
}
