package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/examvault/internal/server/models"
)

type topicResponse struct {
	ID          int64     `json:"id"`
	ProfessorID string    `json:"professor_id"`
	Title       string    `json:"title"`
	Format      string    `json:"format"`
	FileID      string    `json:"file_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTopicResponse(t *models.ExamTopic) topicResponse {
	return topicResponse{
		ID:          t.ID,
		ProfessorID: t.ProfessorID,
		Title:       t.Title,
		Format:      t.Format,
		FileID:      t.FileID,
		CreatedAt:   t.CreatedAt,
	}
}

type answerResponse struct {
	ID          int64     `json:"id"`
	ExamTopicID int64     `json:"exam_topic_id"`
	FileID      string    `json:"file_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type answerDetailResponse struct {
	ID           int64     `json:"id"`
	StudentID    string    `json:"student_id"`
	StudentEmail string    `json:"student_email"`
	ExamTopicID  int64     `json:"exam_topic_id"`
	ExamTitle    string    `json:"exam_title"`
	FileID       string    `json:"file_id"`
	AnswerText   string    `json:"answer_text"`
	Score        *float64  `json:"score"`
	Feedback     string    `json:"feedback,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type gradeRequest struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}

type studentResultResponse struct {
	AnswerID    int64     `json:"answer_id"`
	ExamTopicID int64     `json:"exam_topic_id"`
	ExamTitle   string    `json:"exam_title"`
	Grade       *float64  `json:"grade"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// studentResultsResponse carries the latest grade next to the full history,
// newest first.
type studentResultsResponse struct {
	Grade   *float64                `json:"grade"`
	Results []studentResultResponse `json:"results"`
}

type statsResponse struct {
	TotalStudents int64    `json:"total_students"`
	TotalAnswers  int64    `json:"total_answers"`
	AverageGrade  *float64 `json:"average_grade"`
	MinGrade      *float64 `json:"min_grade"`
	MaxGrade      *float64 `json:"max_grade"`
}

type plagiarismRequest struct {
	ExamTopicID int64  `json:"exam_topic_id"`
	StudentText string `json:"studentText"`
}

type plagiarismResponse struct {
	JaccardIndex  float64 `json:"jaccardIndex"`
	IsPlagiarized bool    `json:"isPlagiarized"`
	SimilarText   string  `json:"similarText,omitempty"`
}

func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	up, err := s.parseUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer up.closer.Close()

	topic, err := s.exams.CreateTopic(r.Context(), p, r.FormValue("title"), r.FormValue("format"), up.name, up.reader)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTopicResponse(topic))
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.exams.ListTopics(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]topicResponse, 0, len(topics))
	for _, t := range topics {
		out = append(out, toTopicResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	up, err := s.parseUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer up.closer.Close()

	topicID, err := parseTopicID(r.FormValue("exam_topic_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	a, err := s.exams.SubmitAnswer(r.Context(), p, topicID, r.FormValue("answer_text"), up.name, up.reader)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, answerResponse{
		ID:          a.ID,
		ExamTopicID: a.ExamTopicID,
		FileID:      a.FileID,
		CreatedAt:   a.CreatedAt,
	})
}

func (s *Server) handleListAnswers(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	answers, err := s.exams.ListAnswers(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]answerDetailResponse, 0, len(answers))
	for _, a := range answers {
		out = append(out, answerDetailResponse{
			ID:           a.ID,
			StudentID:    a.StudentID,
			StudentEmail: a.StudentEmail,
			ExamTopicID:  a.ExamTopicID,
			ExamTitle:    a.TopicTitle,
			FileID:       a.FileID,
			AnswerText:   a.AnswerText,
			Score:        a.Score,
			Feedback:     a.Feedback,
			SubmittedAt:  a.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGradeAnswer(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, "invalid answer id", http.StatusBadRequest)
		return
	}

	var req gradeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, s.maxUploadSize)).Decode(&req); err != nil || req.Score == nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.exams.GradeAnswer(r.Context(), p, id, *req.Score, req.Feedback); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	results, err := s.exams.StudentResults(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := studentResultsResponse{Results: make([]studentResultResponse, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, studentResultResponse{
			AnswerID:    res.AnswerID,
			ExamTopicID: res.ExamTopicID,
			ExamTitle:   res.TopicTitle,
			Grade:       res.Score,
			SubmittedAt: res.SubmittedAt,
		})
	}
	if len(results) > 0 {
		resp.Grade = results[0].Score
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	st, err := s.exams.Stats(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalStudents: st.TotalStudents,
		TotalAnswers:  st.TotalAnswers,
		AverageGrade:  st.AverageScore,
		MinGrade:      st.MinScore,
		MaxGrade:      st.MaxScore,
	})
}

func (s *Server) handlePlagiarism(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req plagiarismRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, s.maxUploadSize)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	m, err := s.exams.CheckPlagiarism(r.Context(), p, req.ExamTopicID, req.StudentText)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plagiarismResponse{
		JaccardIndex:  m.Score,
		IsPlagiarized: m.Plagiarized(),
		SimilarText:   m.SimilarText,
	})
}
