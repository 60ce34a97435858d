// Package httpapi exposes the vault and the exam workflow over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/examvault/internal/logging"
	"github.com/dmitrijs2005/examvault/internal/server/access"
	"github.com/dmitrijs2005/examvault/internal/server/models"
	"github.com/dmitrijs2005/examvault/internal/server/plagiarism"
	"github.com/dmitrijs2005/examvault/internal/vault"
)

const shutdownTimeout = 10 * time.Second

type UserService interface {
	Login(ctx context.Context, email, password string, role access.Role) (string, error)
}

type FileService interface {
	Upload(ctx context.Context, p access.Principal, kind models.DocumentKind, title, name string, r io.Reader) (*models.StoredFile, error)
	List(ctx context.Context, p access.Principal) ([]*models.StoredFile, error)
	Serve(ctx context.Context, p access.Principal, id string, transfer func(context.Context, *vault.Transient) error) error
}

type ExamService interface {
	CreateTopic(ctx context.Context, p access.Principal, title, format, name string, r io.Reader) (*models.ExamTopic, error)
	SubmitAnswer(ctx context.Context, p access.Principal, topicID int64, answerText, name string, r io.Reader) (*models.ExamAnswer, error)
	ListTopics(ctx context.Context) ([]*models.ExamTopic, error)
	CheckPlagiarism(ctx context.Context, p access.Principal, topicID int64, text string) (plagiarism.Match, error)
	ListAnswers(ctx context.Context, p access.Principal) ([]*models.ExamAnswerDetail, error)
	GradeAnswer(ctx context.Context, p access.Principal, answerID int64, score float64, feedback string) error
	StudentResults(ctx context.Context, p access.Principal) ([]*models.StudentResult, error)
	Stats(ctx context.Context, p access.Principal) (*models.GradeStats, error)
}

type Server struct {
	address       string
	users         UserService
	files         FileService
	exams         ExamService
	logger        logging.Logger
	jwtSecret     []byte
	maxUploadSize int64
}

func NewServer(address string, l logging.Logger, us UserService, fs FileService, es ExamService, jwtSecret string, maxUploadSize int64) *Server {
	return &Server{
		address:       address,
		users:         us,
		files:         fs,
		exams:         es,
		logger:        l.With("module", "http_server"),
		jwtSecret:     []byte(jwtSecret),
		maxUploadSize: maxUploadSize,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", s.handleLogin)

	mux.Handle("POST /files", s.requireAuth(http.HandlerFunc(s.handleUpload)))
	mux.Handle("GET /files", s.requireAuth(http.HandlerFunc(s.handleListFiles)))
	mux.Handle("GET /files/{id}", s.requireAuth(http.HandlerFunc(s.handleDownload)))

	mux.Handle("POST /exam-topics", s.requireAuth(requireRole(access.RoleProfessor, http.HandlerFunc(s.handleCreateTopic))))
	mux.Handle("GET /exam-topics", s.requireAuth(http.HandlerFunc(s.handleListTopics)))
	mux.Handle("POST /exam-answers", s.requireAuth(requireRole(access.RoleStudent, http.HandlerFunc(s.handleSubmitAnswer))))
	mux.Handle("GET /exam-answers", s.requireAuth(requireRole(access.RoleProfessor, http.HandlerFunc(s.handleListAnswers))))
	mux.Handle("POST /exam-answers/{id}/grade", s.requireAuth(requireRole(access.RoleProfessor, http.HandlerFunc(s.handleGradeAnswer))))
	mux.Handle("GET /student-results", s.requireAuth(requireRole(access.RoleStudent, http.HandlerFunc(s.handleStudentResults))))
	mux.Handle("GET /stats", s.requireAuth(requireRole(access.RoleProfessor, http.HandlerFunc(s.handleStats))))
	mux.Handle("POST /plagiarism", s.requireAuth(http.HandlerFunc(s.handlePlagiarism)))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return s.logRequests(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run over an existing listener.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
