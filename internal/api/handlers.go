package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/assessment"
	"github.com/p-n-ai/pai-planner/internal/course"
	"github.com/p-n-ai/pai-planner/internal/export"
	"github.com/p-n-ai/pai-planner/internal/plan"
	"github.com/p-n-ai/pai-planner/internal/progress"
)

type createCourseRequest struct {
	Title            string  `json:"title"`
	Subject          string  `json:"subject"`
	TargetGrade      string  `json:"target_grade"`
	CurrentLevel     string  `json:"current_level"`
	ExamDate         string  `json:"exam_date"`
	StudyHoursPerDay float64 `json:"study_hours_per_day"`
	Backend          string  `json:"backend"`
}

type planResponse struct {
	Tier      plan.Source       `json:"tier"`
	Reason    plan.Reason       `json:"reason,omitempty"`
	WeekCount int               `json:"week_count"`
	Weeks     []plan.WeeklyPlan `json:"weeks"`
}

func toPlanResponse(res plan.Result) planResponse {
	return planResponse{Tier: res.Tier, Reason: res.Reason, WeekCount: res.WeekCount, Weeks: res.Weeks}
}

func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return plan.Invalid("body", "%v", err)
	}
	return nil
}

func parseExamDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, nil
	}
	return time.Time{}, plan.Invalid("exam_date", "%q is not a YYYY-MM-DD date", s)
}

func parseBackend(s string, fallback func() ai.Backend) (ai.Backend, error) {
	if strings.TrimSpace(s) == "" {
		return fallback(), nil
	}
	b, err := ai.ParseBackend(s)
	if err != nil {
		return 0, plan.Invalid("backend", "%v", err)
	}
	return b, nil
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request, userID string) {
	var req createCourseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	exam, err := parseExamDate(req.ExamDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	level := course.LevelBeginner
	if req.CurrentLevel != "" {
		if level, err = course.ParseLevel(req.CurrentLevel); err != nil {
			writeError(w, r, plan.Invalid("current_level", "%v", err))
			return
		}
	}
	backend, err := parseBackend(req.Backend, s.Synthesizer.DefaultBackend)
	if err != nil {
		writeError(w, r, err)
		return
	}
	title := req.Title
	if title == "" {
		title = req.Subject
	}

	c := course.Course{
		UserID:           userID,
		Title:            title,
		Subject:          req.Subject,
		TargetGrade:      req.TargetGrade,
		Level:            level,
		ExamDate:         exam,
		StudyHoursPerDay: req.StudyHoursPerDay,
	}
	if err := c.Validate(); err != nil {
		writeError(w, r, plan.Invalid("course", "%v", err))
		return
	}
	if c, err = s.Courses.Create(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.Synthesizer.SynthesizeWith(r.Context(), c, backend)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"course":  c,
		"plan":    toPlanResponse(res),
	})
}

// ownedCourse loads the course and hides other users' courses as not found.
func (s *Server) ownedCourse(r *http.Request, userID string) (course.Course, error) {
	c, err := s.Courses.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return course.Course{}, err
	}
	if c.UserID != userID {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func weekParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(r.PathValue("week"))
	if err != nil || n < 1 {
		return 0, plan.Invalid("week_number", "%q is not a week number", r.PathValue("week"))
	}
	return n, nil
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request, userID string) {
	c, err := s.ownedCourse(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "course": c})
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request, userID string) {
	c, err := s.ownedCourse(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Backend string `json:"backend"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	backend, err := parseBackend(req.Backend, s.Synthesizer.DefaultBackend)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Synthesizer.SynthesizeWith(r.Context(), c, backend)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "plan": toPlanResponse(res)})
}

func (s *Server) handleListWeeks(w http.ResponseWriter, r *http.Request, userID string) {
	c, err := s.ownedCourse(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	weeks, err := s.Plans.ListWeeks(r.Context(), c.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "weeks": weeks})
}

func (s *Server) loadWeek(r *http.Request, userID string) (course.Course, plan.WeeklyPlan, error) {
	c, err := s.ownedCourse(r, userID)
	if err != nil {
		return course.Course{}, plan.WeeklyPlan{}, err
	}
	week, err := weekParam(r)
	if err != nil {
		return course.Course{}, plan.WeeklyPlan{}, err
	}
	p, err := s.Plans.GetWeek(r.Context(), c.ID, week)
	if err != nil {
		return course.Course{}, plan.WeeklyPlan{}, err
	}
	return c, p, nil
}

func (s *Server) handleGetWeek(w http.ResponseWriter, r *http.Request, userID string) {
	_, p, err := s.loadWeek(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	topics := make([]map[string]any, 0, len(p.Topics))
	for _, t := range p.Topics {
		topics = append(topics, map[string]any{"id": plan.TopicID(t.Title), "title": t.Title})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "week": p, "topic_links": topics})
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request, userID string) {
	c, p, err := s.loadWeek(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	topic, ok := plan.FindTopic(p, r.PathValue("topic"))
	if !ok {
		writeMessage(w, http.StatusNotFound, fmt.Sprintf("topic %q not found in week %d", r.PathValue("topic"), p.WeekNumber))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"topic":    topic,
		"guidance": s.Guidance.ForTopic(c, topic, p.WeekNumber),
	})
}

func (s *Server) handleGetTest(w http.ResponseWriter, r *http.Request, userID string) {
	c, err := s.ownedCourse(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	week, err := weekParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	questions, err := s.Evaluator.Questions(r.Context(), c.ID, week)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range questions {
		questions[i].Answer = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "week_number": week, "questions": questions})
}

func (s *Server) handleSubmitTest(w http.ResponseWriter, r *http.Request, userID string) {
	c, err := s.ownedCourse(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	week, err := weekParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Answers []string `json:"answers"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Evaluator.Evaluate(r.Context(), assessment.Submission{
		UserID:   userID,
		CourseID: c.ID,
		Week:     week,
		Answers:  req.Answers,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request, userID string) {
	var req struct {
		CourseID   string `json:"course_id"`
		WeekNumber int    `json:"week_number"`
		ActivityID string `json:"activity_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.Courses.Get(r.Context(), req.CourseID)
	if err == nil && c.UserID != userID {
		err = course.ErrNotFound
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.Tracker.Toggle(r.Context(), userID, c.ID, req.WeekNumber, req.ActivityID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg := "Activity marked as not completed"
	if rec.Completed {
		msg = "Activity marked as completed"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"completed":   rec.Completed,
		"activity_id": rec.ActivityID,
		"message":     msg,
	})
}

func (s *Server) handleWeekProgress(w http.ResponseWriter, r *http.Request, userID string) {
	c, err := s.ownedCourse(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	week, err := weekParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status, err := s.Tracker.WeekStatus(r.Context(), userID, c.ID, week)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "progress": status, "percent": status.Percent()})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, userID string) {
	c, err := s.ownedCourse(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	weeks, err := s.Plans.ListWeeks(r.Context(), c.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	statuses := make(map[int]progress.WeekStatus, len(weeks))
	for _, wk := range weeks {
		st, err := s.Tracker.WeekStatus(r.Context(), userID, c.ID, wk.WeekNumber)
		if err != nil {
			writeError(w, r, err)
			return
		}
		statuses[wk.WeekNumber] = st
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", plan.TopicID(c.Subject)+"-plan.xlsx"))
	if err := export.WritePlan(w, c, weeks, statuses); err != nil {
		writeError(w, r, err)
	}
}

func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request, userID string) {
	doc, err := s.Documents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if doc.UserID != userID {
		writeMessage(w, http.StatusNotFound, "document not found")
		return
	}
	desc, err := s.Annotator.Annotate(r.Context(), doc.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document_id": doc.ID, "description": desc})
}
