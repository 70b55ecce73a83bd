package routes

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) seedSubject(t *testing.T, teacher *models.User) *models.Subject {
	t.Helper()
	subject := &models.Subject{
		Code:       "CS" + uuid.NewString()[:5],
		Name:       "Data Structures",
		Credits:    4,
		Department: "CSE",
		Semester:   1,
		TeacherID:  &teacher.ID,
	}
	require.NoError(t, s.db.Create(subject).Error)
	return subject
}

func decode(t *testing.T, raw json.RawMessage, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, dst))
}

func TestRecordGradeUpsertsPerStudentAndExam(t *testing.T) {
	s := newTestServer(t)
	teacher := s.seedUser(t, models.RoleTeacher)
	student := s.seedUser(t, models.RoleStudent)
	subject := s.seedSubject(t, teacher)
	exam := &models.Exam{Name: "Midterm", Type: models.ExamMidterm, SubjectID: subject.ID, MaximumMarks: 100, CreatedByID: teacher.ID}
	require.NoError(t, s.db.Create(exam).Error)
	tok := s.token(t, teacher)

	grade := func(marks, maximum float64) (int, envelope) {
		return s.do(t, http.MethodPost, "/api/teacher/grades", tok, fiber.Map{
			"studentId": student.ID, "examId": exam.ID, "subjectId": subject.ID,
			"marksObtained": marks, "maximumMarks": maximum,
		})
	}

	status, env := grade(70, 100)
	require.Equal(t, http.StatusOK, status)
	var first models.Grade
	decode(t, env.Data, &first)
	assert.Equal(t, "B", first.Grade)

	status, env = grade(95, 100)
	require.Equal(t, http.StatusOK, status)
	var second models.Grade
	decode(t, env.Data, &second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "A+", second.Grade)
	assert.Equal(t, 95.0, second.MarksObtained)

	var count int64
	s.db.Model(&models.Grade{}).Where("student_id = ? AND exam_id = ?", student.ID, exam.ID).Count(&count)
	assert.EqualValues(t, 1, count)

	status, env = grade(120, 100)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Marks obtained cannot exceed maximum marks", env.Message)

	other := s.seedUser(t, models.RoleTeacher)
	status, _ = s.do(t, http.MethodPost, "/api/teacher/grades", s.token(t, other), fiber.Map{
		"studentId": student.ID, "examId": exam.ID, "subjectId": subject.ID, "marksObtained": 10, "maximumMarks": 100,
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestSubmitAssignmentFlagsLateAndRejectsDuplicates(t *testing.T) {
	s := newTestServer(t)
	teacher := s.seedUser(t, models.RoleTeacher)
	student := s.seedUser(t, models.RoleStudent)
	subject := s.seedSubject(t, teacher)
	tok := s.token(t, student)

	newAssignment := func(due time.Time) *models.Assignment {
		a := &models.Assignment{Title: "Linked lists", SubjectID: subject.ID, TeacherID: teacher.ID, DueDate: due, MaximumMarks: 20}
		require.NoError(t, s.db.Create(a).Error)
		return a
	}
	overdue := newAssignment(time.Now().Add(-time.Hour))
	open := newAssignment(time.Now().Add(24 * time.Hour))

	submit := func(a *models.Assignment) (int, envelope) {
		return s.do(t, http.MethodPost, "/api/student/assignments/"+a.ID.String()+"/submit", tok, fiber.Map{"fileUrl": "https://files.test/answer.pdf"})
	}

	status, env := submit(overdue)
	require.Equal(t, http.StatusCreated, status)
	var late models.Submission
	decode(t, env.Data, &late)
	assert.Equal(t, models.SubmissionLate, late.Status)

	status, env = submit(open)
	require.Equal(t, http.StatusCreated, status)
	var onTime models.Submission
	decode(t, env.Data, &onTime)
	assert.Equal(t, models.SubmissionSubmitted, onTime.Status)

	status, env = submit(open)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Assignment already submitted", env.Message)

	status, _ = s.do(t, http.MethodPost, "/api/student/assignments/not-a-uuid/submit", tok, fiber.Map{"fileUrl": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestStudentAttendanceSummary(t *testing.T) {
	s := newTestServer(t)
	teacher := s.seedUser(t, models.RoleTeacher)
	student := s.seedUser(t, models.RoleStudent)
	subject := s.seedSubject(t, teacher)
	teacherTok := s.token(t, teacher)

	mark := func(date, status string) {
		t.Helper()
		code, _ := s.do(t, http.MethodPost, "/api/teacher/attendance", teacherTok, fiber.Map{
			"studentId": student.ID, "subjectId": subject.ID, "date": date, "status": status,
		})
		require.Equal(t, http.StatusOK, code)
	}
	mark("2024-09-02", models.AttendancePresent)
	mark("2024-09-03", models.AttendanceAbsent)
	mark("2024-09-04", models.AttendanceAbsent)
	mark("2024-09-04", models.AttendancePresent)

	status, env := s.do(t, http.MethodGet, "/api/student/attendance", s.token(t, student), nil)
	require.Equal(t, http.StatusOK, status)
	var body struct {
		Attendance []models.Attendance `json:"attendance"`
		Summary    struct {
			TotalClasses         int     `json:"totalClasses"`
			PresentClasses       int     `json:"presentClasses"`
			AbsentClasses        int     `json:"absentClasses"`
			AttendancePercentage float64 `json:"attendancePercentage"`
		} `json:"summary"`
	}
	decode(t, env.Data, &body)
	assert.Len(t, body.Attendance, 3, "re-marking a day replaces the record")
	assert.Equal(t, 3, body.Summary.TotalClasses)
	assert.Equal(t, 2, body.Summary.PresentClasses)
	assert.Equal(t, 1, body.Summary.AbsentClasses)
	assert.Equal(t, 66.67, body.Summary.AttendancePercentage)

	status, _ = s.do(t, http.MethodPost, "/api/teacher/attendance", teacherTok, fiber.Map{
		"studentId": student.ID, "subjectId": subject.ID, "date": "09/05/2024", "status": models.AttendancePresent,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestEventRegistrationOverHTTP(t *testing.T) {
	s := newTestServer(t)
	teacher := s.seedUser(t, models.RoleTeacher)
	first := s.seedUser(t, models.RoleStudent)
	second := s.seedUser(t, models.RoleStudent)

	start := time.Now().Add(72 * time.Hour)
	status, env := s.do(t, http.MethodPost, "/api/events/events", s.token(t, teacher), fiber.Map{
		"title": "Hackathon", "eventType": "technical", "startDate": start, "endDate": start.Add(8 * time.Hour),
		"maxParticipants": 1, "registrationRequired": true,
	})
	require.Equal(t, http.StatusCreated, status)
	var event models.Event
	decode(t, env.Data, &event)

	status, _ = s.do(t, http.MethodPost, "/api/events/events", s.token(t, first), fiber.Map{
		"title": "Party", "eventType": "cultural", "startDate": start, "endDate": start,
	})
	assert.Equal(t, http.StatusForbidden, status, "students cannot create events")

	register := "/api/events/events/" + event.ID.String() + "/register"
	status, _ = s.do(t, http.MethodPost, register, s.token(t, first), nil)
	require.Equal(t, http.StatusCreated, status)

	status, env = s.do(t, http.MethodPost, register, s.token(t, first), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Already registered for this event", env.Message)

	status, env = s.do(t, http.MethodPost, register, s.token(t, second), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Event is full", env.Message)

	status, _ = s.do(t, http.MethodPost, register, s.token(t, second), fiber.Map{"studentId": first.ID})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, http.MethodGet, "/api/events/events/"+event.ID.String(), s.token(t, second), nil)
	require.Equal(t, http.StatusOK, status)
	var detail struct {
		RegisteredCount int64 `json:"registeredCount"`
	}
	decode(t, env.Data, &detail)
	assert.EqualValues(t, 1, detail.RegisteredCount)
}

func (s *testServer) upload(t *testing.T, path, token, field, filename string, content []byte) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestUploadSingleLocalStorage(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, s.seedUser(t, models.RoleStudent))

	status, env := s.upload(t, "/api/upload/single", tok, "file", "avatar.png", pngHeader)
	require.Equal(t, http.StatusOK, status)
	var file storage.File
	decode(t, env.Data, &file)
	assert.Equal(t, "image/png", file.MimeType)
	assert.NotEmpty(t, file.PublicID)

	status, _ = s.do(t, http.MethodGet, "/api/upload/"+url.PathEscape(file.PublicID)+"/info", tok, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = s.upload(t, "/api/upload/single", tok, "file", "notes.txt", []byte("plain text is not accepted"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid file type", env.Message)

	status, env = s.upload(t, "/api/upload/document", tok, "file", "avatar.png", pngHeader)
	assert.Equal(t, http.StatusBadRequest, status, "an image is not a document")

	status, env = s.upload(t, "/api/upload/single", tok, "attachment", "avatar.png", pngHeader)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "No file uploaded", env.Message)

	status, _ = s.do(t, http.MethodDelete, "/api/upload/"+url.PathEscape(file.PublicID), tok, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/api/upload/"+url.PathEscape(file.PublicID)+"/info", tok, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestClassNotificationReachesOnlyTheBatch(t *testing.T) {
	s := newTestServer(t)
	teacher := s.seedUser(t, models.RoleTeacher)
	inBatch := s.seedUser(t, models.RoleStudent)
	otherBatch := s.seedUser(t, models.RoleStudent, func(u *models.User) { u.Student.AcademicInfo.Batch = "2023-B" })

	status, env := s.do(t, http.MethodPost, "/api/notifications/class", s.token(t, teacher), fiber.Map{
		"title": "Lab moved", "message": "Lab 3 is now in block D", "classId": "2024-A",
	})
	require.Equal(t, http.StatusCreated, status)
	var sent struct {
		RecipientCount int `json:"recipientCount"`
	}
	decode(t, env.Data, &sent)
	assert.Equal(t, 1, sent.RecipientCount)

	titles := func(u *models.User) []string {
		t.Helper()
		code, env := s.do(t, http.MethodGet, "/api/notifications/", s.token(t, u), nil)
		require.Equal(t, http.StatusOK, code)
		var items []struct {
			Title string `json:"title"`
		}
		decode(t, env.Data, &items)
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.Title)
		}
		return out
	}
	assert.Equal(t, []string{"Lab moved"}, titles(inBatch))
	assert.Empty(t, titles(otherBatch))

	status, _ = s.do(t, http.MethodPost, "/api/notifications/class", s.token(t, inBatch), fiber.Map{
		"title": "x", "message": "y", "classId": "2024-A",
	})
	assert.Equal(t, http.StatusForbidden, status)
}
