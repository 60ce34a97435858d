package exams

import (
	"context"

	"github.com/dmitrijs2005/examvault/internal/server/models"
)

// AnswerText pairs a student with the text of one submitted answer.
type AnswerText struct {
	StudentID string
	Text      string
}

type Repository interface {
	CreateTopic(ctx context.Context, topic *models.ExamTopic) (*models.ExamTopic, error)
	GetTopic(ctx context.Context, id int64) (*models.ExamTopic, error)
	ListTopics(ctx context.Context) ([]*models.ExamTopic, error)
	CreateAnswer(ctx context.Context, answer *models.ExamAnswer) (*models.ExamAnswer, error)
	ListAnswerTexts(ctx context.Context, topicID int64) ([]AnswerText, error)
	ListAnswers(ctx context.Context) ([]*models.ExamAnswerDetail, error)
	GradeAnswer(ctx context.Context, id int64, score float64, feedback string) error
	StudentResults(ctx context.Context, studentID string) ([]*models.StudentResult, error)
	Stats(ctx context.Context) (*models.GradeStats, error)
}
