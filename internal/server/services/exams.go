package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dmitrijs2005/examvault/internal/common"
	"github.com/dmitrijs2005/examvault/internal/dbx"
	"github.com/dmitrijs2005/examvault/internal/logging"
	"github.com/dmitrijs2005/examvault/internal/server/access"
	"github.com/dmitrijs2005/examvault/internal/server/models"
	"github.com/dmitrijs2005/examvault/internal/server/plagiarism"
	"github.com/dmitrijs2005/examvault/internal/server/repositories/repomanager"
)

// ExamService manages exam topics, answer submissions and plagiarism checks.
// Uploaded documents go through FileService, so every topic and answer file
// is encrypted at rest.
type ExamService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	files       *FileService
	logger      logging.Logger
}

func NewExamService(db *sql.DB, m repomanager.RepositoryManager, files *FileService, logger logging.Logger) *ExamService {
	return &ExamService{
		db:          db,
		repomanager: m,
		files:       files,
		logger:      logger.With("module", "exams"),
	}
}

// CreateTopic stores the topic document of a professor and records the topic.
func (s *ExamService) CreateTopic(ctx context.Context, p access.Principal, title, format, name string, r io.Reader) (*models.ExamTopic, error) {
	if p.Role != access.RoleProfessor {
		return nil, common.ErrAccessDenied
	}
	title, format = strings.TrimSpace(title), strings.TrimSpace(format)
	if title == "" || format == "" {
		return nil, fmt.Errorf("%w: title and format are required", common.ErrValidation)
	}

	var topic *models.ExamTopic
	_, err := s.files.store(ctx, p, models.KindExamTopic, title, name, r,
		func(ctx context.Context, tx dbx.DBTX, f *models.StoredFile) error {
			var err error
			topic, err = s.repomanager.Exams(tx).CreateTopic(ctx, &models.ExamTopic{
				ProfessorID: p.ID,
				Title:       title,
				Format:      format,
				FileID:      f.ID,
			})
			return err
		})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "exam topic created", "topic_id", topic.ID, "professor_id", p.ID)
	return topic, nil
}

// SubmitAnswer stores a student's answer document for topicID. answerText is
// optional and feeds later plagiarism checks.
func (s *ExamService) SubmitAnswer(ctx context.Context, p access.Principal, topicID int64, answerText, name string, r io.Reader) (*models.ExamAnswer, error) {
	if p.Role != access.RoleStudent {
		return nil, common.ErrAccessDenied
	}
	if topicID <= 0 {
		return nil, fmt.Errorf("%w: exam topic id is required", common.ErrValidation)
	}
	if _, err := s.repomanager.Exams(s.db).GetTopic(ctx, topicID); err != nil {
		return nil, fmt.Errorf("error loading topic %d: %w", topicID, err)
	}

	var answer *models.ExamAnswer
	_, err := s.files.store(ctx, p, models.KindExamAnswer, "", name, r,
		func(ctx context.Context, tx dbx.DBTX, f *models.StoredFile) error {
			var err error
			answer, err = s.repomanager.Exams(tx).CreateAnswer(ctx, &models.ExamAnswer{
				StudentID:   p.ID,
				ExamTopicID: topicID,
				FileID:      f.ID,
				AnswerText:  strings.TrimSpace(answerText),
			})
			return err
		})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "exam answer submitted", "answer_id", answer.ID, "topic_id", topicID, "student_id", p.ID)
	return answer, nil
}

func (s *ExamService) ListTopics(ctx context.Context) ([]*models.ExamTopic, error) {
	topics, err := s.repomanager.Exams(s.db).ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing topics: %w", err)
	}
	return topics, nil
}

// CheckPlagiarism compares text with the answers already submitted for
// topicID, or for every topic when topicID is zero. Students get the score
// and verdict only; the matched text and its author are withheld unless the
// match is one of their own answers.
func (s *ExamService) CheckPlagiarism(ctx context.Context, p access.Principal, topicID int64, text string) (plagiarism.Match, error) {
	if !p.Role.Valid() {
		return plagiarism.Match{}, common.ErrAccessDenied
	}
	if strings.TrimSpace(text) == "" {
		return plagiarism.Match{}, fmt.Errorf("%w: answer text is required", common.ErrValidation)
	}

	rows, err := s.repomanager.Exams(s.db).ListAnswerTexts(ctx, topicID)
	if err != nil {
		return plagiarism.Match{}, fmt.Errorf("error loading answers: %w", err)
	}

	candidates := make([]plagiarism.Candidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, plagiarism.Candidate{StudentID: r.StudentID, Text: r.Text})
	}

	m := plagiarism.MostSimilar(text, candidates)
	if m.Plagiarized() {
		s.logger.Info(ctx, "possible plagiarism", "topic_id", topicID, "score", m.Score,
			"similar_student_id", m.StudentID, "requester_id", p.ID)
	}
	if p.Role != access.RoleProfessor && m.StudentID != p.ID {
		m.StudentID, m.SimilarText = "", ""
	}
	return m, nil
}

// ListAnswers returns every submitted answer for review by a professor.
func (s *ExamService) ListAnswers(ctx context.Context, p access.Principal) ([]*models.ExamAnswerDetail, error) {
	if p.Role != access.RoleProfessor {
		return nil, common.ErrAccessDenied
	}
	answers, err := s.repomanager.Exams(s.db).ListAnswers(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing answers: %w", err)
	}
	return answers, nil
}

// GradeAnswer records a professor's score out of models.ScoreScale and an
// optional comment on an answer.
func (s *ExamService) GradeAnswer(ctx context.Context, p access.Principal, answerID int64, score float64, feedback string) error {
	if p.Role != access.RoleProfessor {
		return common.ErrAccessDenied
	}
	if answerID <= 0 {
		return fmt.Errorf("%w: answer id is required", common.ErrValidation)
	}
	if math.IsNaN(score) || score < 0 || score > models.ScoreScale {
		return fmt.Errorf("%w: score must be between 0 and %d", common.ErrValidation, models.ScoreScale)
	}

	if err := s.repomanager.Exams(s.db).GradeAnswer(ctx, answerID, score, strings.TrimSpace(feedback)); err != nil {
		return fmt.Errorf("error grading answer %d: %w", answerID, err)
	}
	s.logger.Info(ctx, "answer graded", "answer_id", answerID, "professor_id", p.ID)
	return nil
}

// StudentResults returns the grade history of the requesting student.
func (s *ExamService) StudentResults(ctx context.Context, p access.Principal) ([]*models.StudentResult, error) {
	if p.Role != access.RoleStudent {
		return nil, common.ErrAccessDenied
	}
	results, err := s.repomanager.Exams(s.db).StudentResults(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("error loading results: %w", err)
	}
	return results, nil
}

// Stats summarises grades across every answer. Professors only.
func (s *ExamService) Stats(ctx context.Context, p access.Principal) (*models.GradeStats, error) {
	if p.Role != access.RoleProfessor {
		return nil, common.ErrAccessDenied
	}
	st, err := s.repomanager.Exams(s.db).Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading stats: %w", err)
	}
	return st, nil
}
