package models

import "time"

// ScoreScale is the top of the grading scale.
const ScoreScale = 20

// ExamTopic is an exam subject uploaded by a professor.
type ExamTopic struct {
	ID          int64
	ProfessorID string
	Title       string
	Format      string
	FileID      string
	CreatedAt   time.Time
}

// ExamAnswer is a student's submission for a topic. AnswerText is the
// extracted text used for plagiarism checks; it may be empty. Score is nil
// until a professor grades the answer.
type ExamAnswer struct {
	ID          int64
	StudentID   string
	ExamTopicID int64
	FileID      string
	AnswerText  string
	Score       *float64
	Feedback    string
	CreatedAt   time.Time
}

// ExamAnswerDetail is an answer as professors review it, with the student's
// email and the topic title.
type ExamAnswerDetail struct {
	ExamAnswer
	StudentEmail string
	TopicTitle   string
}

// StudentResult is one line of a student's grade history.
type StudentResult struct {
	AnswerID    int64
	ExamTopicID int64
	TopicTitle  string
	Score       *float64
	SubmittedAt time.Time
}

// GradeStats summarises every submitted answer. The score aggregates are nil
// while nothing has been graded.
type GradeStats struct {
	TotalStudents int64
	TotalAnswers  int64
	AverageScore  *float64
	MinScore      *float64
	MaxScore      *float64
}
