package exams

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/examvault/internal/common"
	"github.com/dmitrijs2005/examvault/internal/dbx"
	"github.com/dmitrijs2005/examvault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateTopic(ctx context.Context, topic *models.ExamTopic) (*models.ExamTopic, error) {
	query :=
		`INSERT INTO exam_topics (professor_id, title, format, file_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, topic.ProfessorID, topic.Title, topic.Format, topic.FileID).
		Scan(&topic.ID, &topic.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return topic, nil
}

func (r *PostgresRepository) GetTopic(ctx context.Context, id int64) (*models.ExamTopic, error) {
	query :=
		`SELECT id, professor_id, title, format, file_id, created_at FROM exam_topics
		 WHERE id = $1`

	t := &models.ExamTopic{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&t.ID, &t.ProfessorID, &t.Title, &t.Format, &t.FileID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// ListTopics returns every topic, newest first.
func (r *PostgresRepository) ListTopics(ctx context.Context) ([]*models.ExamTopic, error) {
	query :=
		`SELECT id, professor_id, title, format, file_id, created_at FROM exam_topics
		 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select topics: %w", err)
	}
	defer rows.Close()

	var result []*models.ExamTopic
	for rows.Next() {
		var t models.ExamTopic
		if err := rows.Scan(&t.ID, &t.ProfessorID, &t.Title, &t.Format, &t.FileID, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) CreateAnswer(ctx context.Context, answer *models.ExamAnswer) (*models.ExamAnswer, error) {
	query :=
		`INSERT INTO exam_answers (student_id, exam_topic_id, file_id, answer_text)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, answer.StudentID, answer.ExamTopicID, answer.FileID, answer.AnswerText).
		Scan(&answer.ID, &answer.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return answer, nil
}

// ListAnswerTexts returns the non-empty answer texts submitted for topicID,
// oldest first. A zero topicID selects answers of every topic.
func (r *PostgresRepository) ListAnswerTexts(ctx context.Context, topicID int64) ([]AnswerText, error) {
	query :=
		`SELECT student_id, answer_text FROM exam_answers
		 WHERE ($1 = 0 OR exam_topic_id = $1) AND answer_text <> ''
		 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to select answers: %w", err)
	}
	defer rows.Close()

	var result []AnswerText
	for rows.Next() {
		var a AnswerText
		if err := rows.Scan(&a.StudentID, &a.Text); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListAnswers returns every answer with its student's email and topic title,
// newest first.
func (r *PostgresRepository) ListAnswers(ctx context.Context) ([]*models.ExamAnswerDetail, error) {
	query :=
		`SELECT ea.id, ea.student_id, ea.exam_topic_id, ea.file_id, ea.answer_text,
		        ea.score::float8, COALESCE(ea.ai_feedback, ''), ea.created_at,
		        u.email, et.title
		 FROM exam_answers ea
		 JOIN users u ON u.id::text = ea.student_id
		 JOIN exam_topics et ON et.id = ea.exam_topic_id
		 ORDER BY ea.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select answers: %w", err)
	}
	defer rows.Close()

	var result []*models.ExamAnswerDetail
	for rows.Next() {
		var (
			d     models.ExamAnswerDetail
			score sql.NullFloat64
		)
		err := rows.Scan(&d.ID, &d.StudentID, &d.ExamTopicID, &d.FileID, &d.AnswerText,
			&score, &d.Feedback, &d.CreatedAt, &d.StudentEmail, &d.TopicTitle)
		if err != nil {
			return nil, err
		}
		d.Score = nullFloat(score)
		result = append(result, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) GradeAnswer(ctx context.Context, id int64, score float64, feedback string) error {
	query := `UPDATE exam_answers SET score = $2, ai_feedback = $3 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, score, feedback)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// StudentResults returns the grade history of one student, newest first.
func (r *PostgresRepository) StudentResults(ctx context.Context, studentID string) ([]*models.StudentResult, error) {
	query :=
		`SELECT ea.id, ea.exam_topic_id, et.title, ea.score::float8, ea.created_at
		 FROM exam_answers ea
		 JOIN exam_topics et ON et.id = ea.exam_topic_id
		 WHERE ea.student_id = $1
		 ORDER BY ea.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to select results: %w", err)
	}
	defer rows.Close()

	var result []*models.StudentResult
	for rows.Next() {
		var (
			res   models.StudentResult
			score sql.NullFloat64
		)
		if err := rows.Scan(&res.AnswerID, &res.ExamTopicID, &res.TopicTitle, &score, &res.SubmittedAt); err != nil {
			return nil, err
		}
		res.Score = nullFloat(score)
		result = append(result, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Stats aggregates over every answer. Ungraded answers count towards the
// totals but not the score aggregates.
func (r *PostgresRepository) Stats(ctx context.Context) (*models.GradeStats, error) {
	query :=
		`SELECT COUNT(DISTINCT student_id), COUNT(id),
		        AVG(score)::float8, MIN(score)::float8, MAX(score)::float8
		 FROM exam_answers`

	var (
		st            models.GradeStats
		avg, lo, hi sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query).Scan(&st.TotalStudents, &st.TotalAnswers, &avg, &lo, &hi)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	st.AverageScore, st.MinScore, st.MaxScore = nullFloat(avg), nullFloat(lo), nullFloat(hi)
	return &st, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
