package routes

import (
	"github.com/anjiri1684/campus_manager/handlers"
	"github.com/anjiri1684/campus_manager/middleware"
	"github.com/gofiber/fiber/v2"
)

func TeacherRoutes(api fiber.Router, h *handlers.Handler) {
	teacher := api.Group("/teacher", with(h, middleware.TeacherRequired())...)

	teacher.Get("/subjects", h.TeacherSubjects)
	teacher.Get("/subjects/:subjectId/students", h.SubjectStudents)

	teacher.Post("/attendance", h.MarkAttendance)
	teacher.Get("/attendance/:subjectId", h.SubjectAttendance)

	teacher.Get("/grades", h.TeacherGrades)
	teacher.Post("/grades", h.RecordGrade)

	teacher.Get("/assignments", h.TeacherAssignments)
	teacher.Post("/assignments", h.CreateAssignment)
	teacher.Get("/assignments/:id/submissions", h.AssignmentSubmissions)
	teacher.Put("/assignments/:id/submissions/:submissionId/grade", h.GradeSubmission)
}

func StudentRoutes(api fiber.Router, h *handlers.Handler) {
	student := api.Group("/student", with(h, middleware.StudentRequired())...)

	student.Get("/profile", h.StudentProfile)
	student.Get("/attendance", h.StudentAttendance)
	student.Get("/grades", h.StudentGrades)
	student.Get("/assignments", h.StudentAssignments)
	student.Post("/assignments/:assignmentId/submit", h.SubmitAssignment)
	student.Get("/fees", h.StudentFees)
}

func CommonRoutes(api fiber.Router, h *handlers.Handler) {
	common := api.Group("/common", h.Authenticated()...)

	common.Put("/profile", h.UpdateProfile)
	common.Post("/upload-avatar", h.UploadAvatar)
	common.Get("/departments", h.Departments)
}
