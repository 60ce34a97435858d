package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/dmitrijs2005/examvault/internal/common"
	"github.com/dmitrijs2005/examvault/internal/server/access"
	"github.com/dmitrijs2005/examvault/internal/server/models"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/exams"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExamServiceForTest(t *testing.T) (*ExamService, *fakeRepoManager, func() sqlExpect, func() []string) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	v := newTestVault(t)
	fs := NewFileService(db, rm, v, nopLogger)
	return NewExamService(db, rm, fs, nopLogger), rm,
		func() sqlExpect { return sqlExpect{mock} },
		func() []string { return blobs(t, v) }
}

func TestCreateTopic_Success(t *testing.T) {
	s, rm, expectTx, stored := newExamServiceForTest(t)
	expectTx().commit()

	topic, err := s.CreateTopic(context.Background(), professor, " Algèbre ", "pdf", "sujet.pdf", strings.NewReader("%PDF sujet"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), topic.ID)
	assert.Equal(t, "Algèbre", topic.Title)
	assert.Equal(t, "p1", topic.ProfessorID)
	require.Len(t, rm.f.rows, 1)
	assert.Equal(t, rm.f.rows[0].ID, topic.FileID)
	assert.Equal(t, models.KindExamTopic, rm.f.rows[0].Kind)
	assert.Len(t, stored(), 1)
}

func TestCreateTopic_Rejected(t *testing.T) {
	s, _, _, stored := newExamServiceForTest(t)

	_, err := s.CreateTopic(context.Background(), student7, "T", "pdf", "a.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	_, err = s.CreateTopic(context.Background(), professor, "", "pdf", "a.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = s.CreateTopic(context.Background(), professor, "T", " ", "a.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Empty(t, stored())
}

func TestCreateTopic_InsertFailureRemovesBlob(t *testing.T) {
	s, rm, expectTx, stored := newExamServiceForTest(t)
	expectTx().rollback()
	boom := errors.New("topic insert failed")
	rm.e.createTopicErr = boom

	_, err := s.CreateTopic(context.Background(), professor, "T", "pdf", "a.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, stored())
}

func TestSubmitAnswer_Success(t *testing.T) {
	s, rm, expectTx, _ := newExamServiceForTest(t)
	rm.e.topics = map[int64]*models.ExamTopic{3: {ID: 3, Title: "T"}}
	expectTx().commit()

	a, err := s.SubmitAnswer(context.Background(), student7, 3, "  ma réponse ", "copie.pdf", strings.NewReader("%PDF copie"))
	require.NoError(t, err)

	assert.Equal(t, "7", a.StudentID)
	assert.Equal(t, int64(3), a.ExamTopicID)
	assert.Equal(t, "ma réponse", a.AnswerText)
	require.Len(t, rm.f.rows, 1)
	assert.Equal(t, models.KindExamAnswer, rm.f.rows[0].Kind)
	assert.Equal(t, rm.f.rows[0].ID, a.FileID)
}

func TestSubmitAnswer_Rejected(t *testing.T) {
	s, rm, _, stored := newExamServiceForTest(t)
	rm.e.topics = map[int64]*models.ExamTopic{3: {ID: 3}}

	_, err := s.SubmitAnswer(context.Background(), professor, 3, "", "a.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	_, err = s.SubmitAnswer(context.Background(), student7, 0, "", "a.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = s.SubmitAnswer(context.Background(), student7, 99, "", "a.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.Empty(t, stored())
}

func TestListTopics(t *testing.T) {
	s, rm, _, _ := newExamServiceForTest(t)
	rm.e.topics = map[int64]*models.ExamTopic{1: {ID: 1, Title: "A"}, 2: {ID: 2, Title: "B"}}

	topics, err := s.ListTopics(context.Background())
	require.NoError(t, err)
	require.Len(t, topics, 2)
	assert.Equal(t, "B", topics[0].Title)
}

func TestCheckPlagiarism(t *testing.T) {
	s, rm, _, _ := newExamServiceForTest(t)
	rm.e.texts = []exams.AnswerText{
		{StudentID: "8", Text: "la dérivée de x carré vaut deux x"},
		{StudentID: "9", Text: "je ne sais pas"},
	}

	m, err := s.CheckPlagiarism(context.Background(), professor, 3, "la dérivée de x carré vaut deux x")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rm.e.lastTopicQuery)
	assert.Equal(t, "8", m.StudentID)
	assert.InDelta(t, 1.0, m.Score, 1e-9)
	assert.True(t, m.Plagiarized())

	assert.Equal(t, "la dérivée de x carré vaut deux x", m.SimilarText)

	m, err = s.CheckPlagiarism(context.Background(), professor, 0, "réponse originale")
	require.NoError(t, err)
	assert.False(t, m.Plagiarized())
}

func TestCheckPlagiarism_EmptyText(t *testing.T) {
	s, _, _, _ := newExamServiceForTest(t)
	_, err := s.CheckPlagiarism(context.Background(), student7, 0, "  ")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestCheckPlagiarism_StudentNeverSeesOthersText(t *testing.T) {
	s, rm, _, _ := newExamServiceForTest(t)
	rm.e.texts = []exams.AnswerText{
		{StudentID: "8", Text: "answer written by student 8"},
		{StudentID: "7", Text: "my own answer about limits"},
	}

	m, err := s.CheckPlagiarism(context.Background(), student7, 0, "answer written by student 8")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.Score, 1e-9)
	assert.True(t, m.Plagiarized())
	assert.Empty(t, m.SimilarText)
	assert.Empty(t, m.StudentID)

	m, err = s.CheckPlagiarism(context.Background(), student7, 0, "my own answer about limits")
	require.NoError(t, err)
	assert.Equal(t, "7", m.StudentID)
	assert.Equal(t, "my own answer about limits", m.SimilarText)
}

func TestCheckPlagiarism_UnknownRole(t *testing.T) {
	s, _, _, _ := newExamServiceForTest(t)
	_, err := s.CheckPlagiarism(context.Background(), access.Principal{ID: "x", Role: "guest"}, 0, "text")
	assert.ErrorIs(t, err, common.ErrAccessDenied)
}

func TestListAnswers(t *testing.T) {
	s, rm, _, _ := newExamServiceForTest(t)
	rm.e.details = []*models.ExamAnswerDetail{{StudentEmail: "s@uni.edu", TopicTitle: "A"}}

	got, err := s.ListAnswers(context.Background(), professor)
	require.NoError(t, err)
	assert.Equal(t, rm.e.details, got)

	_, err = s.ListAnswers(context.Background(), student7)
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	rm.e.repoErr = errors.New("db down")
	_, err = s.ListAnswers(context.Background(), professor)
	assert.ErrorContains(t, err, "db down")
}

func TestGradeAnswer(t *testing.T) {
	tests := []struct {
		name    string
		p       access.Principal
		id      int64
		score   float64
		wantErr error
	}{
		{name: "graded", p: professor, id: 4, score: 15.5},
		{name: "zero is a valid score", p: professor, id: 4, score: 0},
		{name: "full marks", p: professor, id: 4, score: models.ScoreScale},
		{name: "student cannot grade", p: student7, id: 4, score: 10, wantErr: common.ErrAccessDenied},
		{name: "missing id", p: professor, id: 0, score: 10, wantErr: common.ErrValidation},
		{name: "negative", p: professor, id: 4, score: -1, wantErr: common.ErrValidation},
		{name: "above scale", p: professor, id: 4, score: 20.5, wantErr: common.ErrValidation},
		{name: "not a number", p: professor, id: 4, score: math.NaN(), wantErr: common.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rm, _, _ := newExamServiceForTest(t)

			err := s.GradeAnswer(context.Background(), tt.p, tt.id, tt.score, " fine ")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, rm.e.graded)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.score, rm.e.graded[tt.id])
		})
	}
}

func TestGradeAnswer_UnknownAnswer(t *testing.T) {
	s, rm, _, _ := newExamServiceForTest(t)
	rm.e.repoErr = common.ErrorNotFound

	err := s.GradeAnswer(context.Background(), professor, 42, 10, "")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestStudentResults(t *testing.T) {
	s, rm, _, _ := newExamServiceForTest(t)
	score := 12.0
	rm.e.results = map[string][]*models.StudentResult{
		"7": {{AnswerID: 1, TopicTitle: "A", Score: &score}},
		"8": {{AnswerID: 2, TopicTitle: "B"}},
	}

	got, err := s.StudentResults(context.Background(), student7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].AnswerID)

	_, err = s.StudentResults(context.Background(), professor)
	assert.ErrorIs(t, err, common.ErrAccessDenied)
}

func TestStats(t *testing.T) {
	s, rm, _, _ := newExamServiceForTest(t)
	rm.e.stats = &models.GradeStats{TotalStudents: 2, TotalAnswers: 3}

	got, err := s.Stats(context.Background(), professor)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.TotalAnswers)

	_, err = s.Stats(context.Background(), student8)
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	rm.e.repoErr = errors.New("db down")
	_, err = s.Stats(context.Background(), professor)
	assert.Error(t, err)
}
