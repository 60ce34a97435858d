// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/examvault/internal/common"
)

// DocumentKind tags what an uploaded document is. It doubles as the storage
// namespace of the ciphertext blob and carries no security meaning.
type DocumentKind string

const (
	KindExamTopic  DocumentKind = "exam"
	KindExamAnswer DocumentKind = "answer"
	KindDocument   DocumentKind = "document"
)

// ParseDocumentKind validates s against the known kinds.
func ParseDocumentKind(s string) (DocumentKind, error) {
	switch k := DocumentKind(s); k {
	case KindExamTopic, KindExamAnswer, KindDocument:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown document kind %q", common.ErrValidation, s)
	}
}

// StoredFile describes one encrypted document. The plaintext never persists;
// only CiphertextPath is durable.
type StoredFile struct {
	// ID is assigned at ingestion and never changes.
	ID string
	// Kind is the storage namespace the uploader's role selected.
	Kind DocumentKind
	// OwnerID identifies the uploading principal.
	OwnerID string
	// Title is a human label; defaults to OriginalName.
	Title string
	// OriginalName is the client-side file name, used for downloads.
	OriginalName string
	// CiphertextPath is the absolute path of the encrypted blob.
	CiphertextPath string
	// Size is the plaintext size in bytes.
	Size      int64
	CreatedAt time.Time
}
