package routes

import (
	"github.com/anjiri1684/campus_manager/handlers"
	"github.com/anjiri1684/campus_manager/middleware"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(api fiber.Router, h *handlers.Handler) {
	admin := api.Group("/admin", with(h, middleware.AdminRequired())...)

	admin.Get("/dashboard/stats", h.DashboardStats)

	students := admin.Group("/students")
	students.Get("", h.ListStudents)
	students.Post("", h.CreateStudent)
	students.Get("/:id", h.GetStudent)
	students.Put("/:id", h.UpdateStudent)
	students.Delete("/:id", h.DeleteStudent)

	teachers := admin.Group("/teachers")
	teachers.Get("", h.ListTeachers)
	teachers.Post("", h.CreateTeacher)
	teachers.Get("/:id", h.GetTeacher)
	teachers.Put("/:id", h.UpdateTeacher)
	teachers.Delete("/:id", h.DeleteTeacher)

	admin.Put("/users/:id/status", h.SetUserStatus)

	subjects := admin.Group("/subjects")
	subjects.Get("", h.ListSubjects)
	subjects.Post("", h.CreateSubject)
	subjects.Put("/:id", h.UpdateSubject)
	subjects.Delete("/:id", h.DeleteSubject)

	fees := admin.Group("/fees")
	fees.Get("", h.ListFees)
	fees.Post("", h.CreateFee)
	fees.Put("/:id", h.UpdateFee)
	fees.Delete("/:id", h.DeleteFee)

	admin.Get("/exams", h.ListExams)
	admin.Post("/exams", h.CreateExam)
}
