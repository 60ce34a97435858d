package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/examvault/internal/common"
	"github.com/dmitrijs2005/examvault/internal/server/access"
	"github.com/dmitrijs2005/examvault/internal/server/models"
	"github.com/dmitrijs2005/examvault/internal/vault"
)

const (
	// multipartSlack covers form fields and part headers on top of the file.
	multipartSlack = 64 << 10
	sniffLen       = 512
	pdfContentType = "application/pdf"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type fileResponse struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	OwnerID      string    `json:"owner_id"`
	Title        string    `json:"title"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
}

func toFileResponse(f *models.StoredFile) fileResponse {
	return fileResponse{
		ID:           f.ID,
		Kind:         string(f.Kind),
		OwnerID:      f.OwnerID,
		Title:        f.Title,
		OriginalName: f.OriginalName,
		Size:         f.Size,
		CreatedAt:    f.CreatedAt,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := s.users.Login(r.Context(), req.Email, req.Password, access.Role(req.Role))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// uploadedFile is the "file" part of a multipart upload, already checked to
// be a PDF.
type uploadedFile struct {
	name   string
	reader io.Reader
	closer io.Closer
}

// parseUpload caps the body, parses the multipart form in memory and opens
// the "file" part. Uploads must be PDF documents.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*uploadedFile, error) {
	limit := s.maxUploadSize + multipartSlack
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: invalid multipart form", common.ErrValidation)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: no file uploaded", common.ErrValidation)
	}
	if header.Size > s.maxUploadSize {
		file.Close()
		return nil, &http.MaxBytesError{Limit: s.maxUploadSize}
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		file.Close()
		return nil, err
	}
	head = head[:n]
	if n == 0 {
		file.Close()
		return nil, fmt.Errorf("%w: empty file", common.ErrValidation)
	}
	if ct := http.DetectContentType(head); ct != pdfContentType {
		file.Close()
		return nil, fmt.Errorf("%w: only PDF files are accepted, got %s", common.ErrValidation, ct)
	}

	return &uploadedFile{
		name:   header.Filename,
		reader: io.MultiReader(bytes.NewReader(head), file),
		closer: file,
	}, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	up, err := s.parseUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer up.closer.Close()

	kind := models.DocumentKind(r.FormValue("kind"))
	if kind == "" {
		kind = models.KindDocument
	}

	f, err := s.files.Upload(r.Context(), p, kind, r.FormValue("title"), up.name, up.reader)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFileResponse(f))
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	files, err := s.files.List(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toFileResponse(f))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	id := r.PathValue("id")

	started := false
	err := s.files.Serve(r.Context(), p, id, func(_ context.Context, t *vault.Transient) error {
		started = true
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": t.Name()}))
		w.Header().Set("Content-Type", pdfContentType)
		http.ServeContent(w, r, t.Name(), t.ModTime(), t)
		return nil
	})
	if err == nil {
		return
	}
	if started {
		s.logger.Warn(r.Context(), "download interrupted", "file_id", id, "error", err)
		return
	}
	s.writeError(w, r, err)
}

func parseTopicID(v string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid exam topic id %q", common.ErrValidation, v)
	}
	return id, nil
}
