// Package vault persists uploaded documents encrypted at rest and hands
// decrypted copies back only to callers the access policy lets through.
//
// A Vault is the storage context of one deployment: it carries the root
// directory and the content key derived once from the deployment secret.
// Build it with New at process start and pass it to whoever needs it.
//
// Layout under the root directory:
//
//	{kind}_{ownerID}_{unixMillis}_{uuid}.enc   one ciphertext blob per file
//	tmp/plain_*                                transient plaintext for downloads
//
// Blob names are unique per call, so concurrent ingests never contend for a
// path and no locking is needed.
package vault

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/examvault/internal/common"
	"github.com/dmitrijs2005/examvault/internal/cryptox"
	"github.com/dmitrijs2005/examvault/internal/filex"
	"github.com/dmitrijs2005/examvault/internal/logging"
	"github.com/dmitrijs2005/examvault/internal/server/access"
	"github.com/dmitrijs2005/examvault/internal/server/models"
	"github.com/google/uuid"
)

const (
	blobExt      = ".enc"
	transientDir = "tmp"
	transientPfx = "plain_"
	partialPfx   = ".partial-"
)

// Config carries what New needs to build a Vault.
type Config struct {
	// Secret is the deployment-wide encryption secret. Required.
	Secret string
	// RootDir holds the ciphertext blobs. Created if missing. Required.
	RootDir string
	// Logger is optional; nothing is logged when nil.
	Logger logging.Logger
}

// Vault is safe for concurrent use. It keeps no mutable state after New.
type Vault struct {
	root   string
	tmp    string
	key    []byte
	logger logging.Logger

	now       func() time.Time
	newSuffix func() string
}

// New derives the content key and prepares the root directory. Any problem
// is reported as common.ErrConfiguration and should stop the process.
func New(cfg Config) (*Vault, error) {
	if strings.TrimSpace(cfg.RootDir) == "" {
		return nil, fmt.Errorf("%w: vault root directory is empty", common.ErrConfiguration)
	}

	key, err := cryptox.DeriveKey(cfg.Secret)
	if err != nil {
		return nil, err
	}

	root, err := filex.EnsureDir(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	tmp, err := filex.EnsureDir(filepath.Join(root, transientDir))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop{}
	}

	return &Vault{
		root:      root,
		tmp:       tmp,
		key:       key,
		logger:    logger.With("module", "vault"),
		now:       time.Now,
		newSuffix: uuid.NewString,
	}, nil
}

// Root returns the absolute root directory.
func (v *Vault) Root() string { return v.root }

// Ingest encrypts the content of r into a new blob and returns its metadata.
// kind and ownerID pick the storage namespace; originalName is kept for
// downloads. An empty stream is rejected before any crypto work. On failure
// no blob is left behind.
func (v *Vault) Ingest(ctx context.Context, r io.Reader, kind models.DocumentKind, ownerID, originalName string) (*models.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := models.ParseDocumentKind(string(kind)); err != nil {
		return nil, err
	}
	if err := validateOwnerID(ownerID); err != nil {
		return nil, err
	}
	name, err := cleanName(originalName)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: missing file stream", common.ErrValidation)
	}

	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", common.ErrValidation)
		}
		return nil, v.storageErr(ctx, "read upload", err)
	}

	ts := v.now().UnixMilli()
	suffix := v.newSuffix()
	blob := filepath.Join(v.root, fmt.Sprintf("%s_%s_%d_%s%s", kind, ownerID, ts, suffix, blobExt))

	src := &countingReader{r: &ctxReader{ctx: ctx, r: br}}
	err = filex.WriteAtomic(blob, func(w io.Writer) error {
		return cryptox.EncryptStream(w, src, v.key)
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrValidation):
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, v.storageErr(ctx, "encrypt upload", err)
		}
	}

	f := &models.StoredFile{
		ID:             fmt.Sprintf("%d_%s_%s", ts, suffix, name),
		Kind:           kind,
		OwnerID:        ownerID,
		Title:          name,
		OriginalName:   name,
		CiphertextPath: blob,
		Size:           src.n,
		CreatedAt:      time.UnixMilli(ts).UTC(),
	}
	v.logger.Info(ctx, "file stored", "file_id", f.ID, "kind", kind, "owner_id", ownerID, "size", f.Size)
	return f, nil
}

// Retrieve checks the access policy and, if it passes, decrypts the blob of f
// into a Transient owned by the caller. The caller must Close it; see Serve
// for a wrapper that does so on every exit path.
//
// A denied request returns common.ErrAccessDenied without touching the disk.
func (v *Vault) Retrieve(ctx context.Context, f *models.StoredFile, requester access.Principal) (*Transient, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: missing file", common.ErrValidation)
	}
	if !access.CanRead(requester, f.OwnerID) {
		v.logger.Info(ctx, "read denied", "file_id", f.ID, "requester_id", requester.ID, "role", requester.Role)
		return nil, common.ErrAccessDenied
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob, err := v.openBlob(f.CiphertextPath)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, v.storageErr(ctx, "open blob", err)
	}
	defer blob.Close()

	tmp, err := os.CreateTemp(v.tmp, transientPfx+"*")
	if err != nil {
		return nil, v.storageErr(ctx, "create transient", err)
	}
	discard := func() {
		_ = tmp.Close()
		if rmErr := os.Remove(tmp.Name()); rmErr != nil {
			v.logger.Error(ctx, "remove transient", "path", tmp.Name(), "error", rmErr)
		}
	}

	if err := cryptox.DecryptStream(tmp, &ctxReader{ctx: ctx, r: blob}, v.key); err != nil {
		discard()
		switch {
		case errors.Is(err, common.ErrIntegrity):
			v.logger.Error(ctx, "blob failed authentication", "file_id", f.ID, "path", f.CiphertextPath)
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, v.storageErr(ctx, "decrypt blob", err)
		}
	}

	info, err := tmp.Stat()
	if err == nil {
		_, err = tmp.Seek(0, io.SeekStart)
	}
	if err != nil {
		discard()
		return nil, v.storageErr(ctx, "rewind transient", err)
	}

	v.logger.Debug(ctx, "transient created", "file_id", f.ID, "path", tmp.Name())
	return &Transient{
		file:    tmp,
		name:    f.OriginalName,
		size:    info.Size(),
		modTime: f.CreatedAt,
		logger:  v.logger,
	}, nil
}

// Serve retrieves f for requester and runs transfer over the decrypted copy.
// The transient file is removed when Serve returns, whether transfer
// succeeded, failed, panicked or ctx was cancelled.
func (v *Vault) Serve(ctx context.Context, f *models.StoredFile, requester access.Principal, transfer func(context.Context, *Transient) error) error {
	t, err := v.Retrieve(ctx, f, requester)
	if err != nil {
		return err
	}
	defer t.Close()

	if err := transfer(ctx, t); err != nil {
		return err
	}
	return ctx.Err()
}

// Verify authenticates the blob of f without materialising any plaintext.
// Errors are classified like Retrieve's: common.ErrorNotFound for a missing
// blob, common.ErrIntegrity for a blob that fails authentication and
// common.ErrStorageIO for everything else.
func (v *Vault) Verify(ctx context.Context, f *models.StoredFile) error {
	if f == nil {
		return fmt.Errorf("%w: missing file", common.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	blob, err := v.openBlob(f.CiphertextPath)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return v.storageErr(ctx, "open blob", err)
	}
	defer blob.Close()

	err = cryptox.DecryptStream(io.Discard, &ctxReader{ctx: ctx, r: blob}, v.key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrIntegrity):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return v.storageErr(ctx, "verify blob", err)
	}
}

// Remove deletes the blob of f. It is only reached from explicit
// administrative actions.
func (v *Vault) Remove(ctx context.Context, f *models.StoredFile) error {
	if f == nil {
		return fmt.Errorf("%w: missing file", common.ErrValidation)
	}
	if !v.within(f.CiphertextPath) {
		return fmt.Errorf("%w: blob path outside vault root", common.ErrValidation)
	}
	if err := filex.RemoveIfExists(f.CiphertextPath); err != nil {
		return v.storageErr(ctx, "remove blob", err)
	}
	v.logger.Info(ctx, "blob removed", "file_id", f.ID)
	return nil
}

// SweepTransient deletes leftovers of a previous run: transient plaintext
// and partial ciphertext writes. Call it once at startup, before serving.
func (v *Vault) SweepTransient(ctx context.Context) (int, error) {
	var removed int
	sweep := func(dir, prefix string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
				continue
			}
			if err := filex.RemoveIfExists(filepath.Join(dir, e.Name())); err != nil {
				return err
			}
			removed++
		}
		return nil
	}

	if err := sweep(v.tmp, transientPfx); err != nil {
		return removed, v.storageErr(ctx, "sweep transient", err)
	}
	if err := sweep(v.root, partialPfx); err != nil {
		return removed, v.storageErr(ctx, "sweep partial", err)
	}
	if removed > 0 {
		v.logger.Warn(ctx, "removed leftover files", "count", removed)
	}
	return removed, nil
}

func (v *Vault) openBlob(path string) (*os.File, error) {
	if !v.within(path) {
		return nil, fmt.Errorf("%w: blob path outside vault root", common.ErrStorageIO)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: blob %s", common.ErrorNotFound, filepath.Base(path))
		}
		return nil, err
	}
	return f, nil
}

func (v *Vault) within(path string) bool {
	rel, err := filepath.Rel(v.root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !strings.ContainsRune(rel, filepath.Separator)
}

func (v *Vault) storageErr(ctx context.Context, op string, err error) error {
	v.logger.Error(ctx, op, "error", err)
	if errors.Is(err, common.ErrStorageIO) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", common.ErrStorageIO, op, err)
}

func validateOwnerID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\_`) || id == "." || id == ".." {
		return fmt.Errorf("%w: invalid owner id %q", common.ErrValidation, id)
	}
	return nil
}

func cleanName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "" || base == "." || base == "/" || base == ".." {
		return "", fmt.Errorf("%w: missing file name", common.ErrValidation)
	}
	return base, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
