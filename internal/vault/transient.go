package vault

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/examvault/internal/logging"
)

// Transient is a decrypted copy of a stored file, alive only while one
// download is in flight. It is owned by the request that created it and is
// deleted by the first Close; later calls do nothing.
type Transient struct {
	file    *os.File
	name    string
	size    int64
	modTime time.Time
	logger  logging.Logger

	once sync.Once
}

// Name is the logical file name to present to the client.
func (t *Transient) Name() string { return t.name }

// Size is the plaintext size in bytes.
func (t *Transient) Size() int64 { return t.size }

// ModTime is the ingestion time of the stored file.
func (t *Transient) ModTime() time.Time { return t.modTime }

// Path is the on-disk location of the transient copy.
func (t *Transient) Path() string { return t.file.Name() }

func (t *Transient) Read(p []byte) (int, error) { return t.file.Read(p) }

func (t *Transient) Seek(offset int64, whence int) (int64, error) {
	return t.file.Seek(offset, whence)
}

// Close removes the transient file. Removal failures are logged and never
// returned, so they cannot mask the outcome of the transfer.
func (t *Transient) Close() error {
	t.once.Do(func() {
		_ = t.file.Close()
		if err := os.Remove(t.file.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.logger.Error(context.Background(), "remove transient", "path", t.file.Name(), "error", err)
		}
	})
	return nil
}
