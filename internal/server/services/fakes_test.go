package services

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/examvault/internal/common"
	"github.com/dmitrijs2005/examvault/internal/dbx"
	"github.com/dmitrijs2005/examvault/internal/logging"
	"github.com/dmitrijs2005/examvault/internal/server/config"
	"github.com/dmitrijs2005/examvault/internal/server/models"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/exams"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/files"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/users"
	"github.com/dmitrijs2005/examvault/internal/vault"
	"github.com/stretchr/testify/require"
)

// --- fake repositories ---

type fakeUsers struct {
	users.Repository

	byEmail   map[string]*models.User
	createErr error
	getErr    error
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	u.ID = "u-" + u.Email
	if f.byEmail == nil {
		f.byEmail = map[string]*models.User{}
	}
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fakeFiles struct {
	files.Repository

	mu        sync.Mutex
	rows      []*models.StoredFile
	createErr error
	deleteErr error
	listErr   error
}

func (f *fakeFiles) Create(_ context.Context, file *models.StoredFile) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, file)
	return nil
}

func (f *fakeFiles) GetByID(_ context.Context, id string) (*models.StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeFiles) ListByOwner(_ context.Context, ownerID string) ([]*models.StoredFile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.StoredFile
	for _, r := range f.rows {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeFiles) ListAll(context.Context) ([]*models.StoredFile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.StoredFile(nil), f.rows...), nil
}

func (f *fakeFiles) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeExams struct {
	exams.Repository

	topics         map[int64]*models.ExamTopic
	answers        []*models.ExamAnswer
	texts          []exams.AnswerText
	createTopicErr error
	lastTopicQuery int64

	details []*models.ExamAnswerDetail
	results map[string][]*models.StudentResult
	stats   *models.GradeStats
	graded  map[int64]float64
	repoErr error
}

func (f *fakeExams) CreateTopic(_ context.Context, t *models.ExamTopic) (*models.ExamTopic, error) {
	if f.createTopicErr != nil {
		return nil, f.createTopicErr
	}
	if f.topics == nil {
		f.topics = map[int64]*models.ExamTopic{}
	}
	t.ID = int64(len(f.topics) + 1)
	t.CreatedAt = time.Now()
	f.topics[t.ID] = t
	return t, nil
}

func (f *fakeExams) GetTopic(_ context.Context, id int64) (*models.ExamTopic, error) {
	t, ok := f.topics[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return t, nil
}

func (f *fakeExams) ListTopics(context.Context) ([]*models.ExamTopic, error) {
	var out []*models.ExamTopic
	for i := int64(len(f.topics)); i > 0; i-- {
		out = append(out, f.topics[i])
	}
	return out, nil
}

func (f *fakeExams) CreateAnswer(_ context.Context, a *models.ExamAnswer) (*models.ExamAnswer, error) {
	a.ID = int64(len(f.answers) + 1)
	f.answers = append(f.answers, a)
	return a, nil
}

func (f *fakeExams) ListAnswerTexts(_ context.Context, topicID int64) ([]exams.AnswerText, error) {
	f.lastTopicQuery = topicID
	return f.texts, nil
}

func (f *fakeExams) ListAnswers(context.Context) ([]*models.ExamAnswerDetail, error) {
	return f.details, f.repoErr
}

func (f *fakeExams) GradeAnswer(_ context.Context, id int64, score float64, _ string) error {
	if f.repoErr != nil {
		return f.repoErr
	}
	if f.graded == nil {
		f.graded = map[int64]float64{}
	}
	f.graded[id] = score
	return nil
}

func (f *fakeExams) StudentResults(_ context.Context, studentID string) ([]*models.StudentResult, error) {
	return f.results[studentID], f.repoErr
}

func (f *fakeExams) Stats(context.Context) (*models.GradeStats, error) {
	if f.repoErr != nil {
		return nil, f.repoErr
	}
	return f.stats, nil
}

type fakeRepoManager struct {
	u *fakeUsers
	f *fakeFiles
	e *fakeExams
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: &fakeUsers{}, f: &fakeFiles{}, e: &fakeExams{}}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.u }
func (m *fakeRepoManager) Files(dbx.DBTX) files.Repository              { return m.f }
func (m *fakeRepoManager) Exams(dbx.DBTX) exams.Repository              { return m.e }

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(vault.Config{Secret: "test-secret", RootDir: t.TempDir()})
	require.NoError(t, err)
	return v
}

func blobs(t *testing.T, v *vault.Vault) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(v.Root(), "*.enc"))
	require.NoError(t, err)
	return matches
}

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "jwt-secret", AccessTokenValidityDuration: time.Hour}
}

func readAll(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

var nopLogger logging.Logger = logging.Nop{}

// sqlExpect queues the transaction expectations of one dbx.WithTx call.
type sqlExpect struct {
	mock sqlmock.Sqlmock
}

func (e sqlExpect) commit() {
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()
}

func (e sqlExpect) commitFails(err error) {
	e.mock.ExpectBegin()
	e.mock.ExpectCommit().WillReturnError(err)
}

func (e sqlExpect) rollback() {
	e.mock.ExpectBegin()
	e.mock.ExpectRollback()
}
