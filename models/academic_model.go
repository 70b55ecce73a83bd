package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Subject struct {
	Base
	Code        string         `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Name        string         `gorm:"size:150;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Credits     int            `gorm:"not null" json:"credits"`
	Department  string         `gorm:"size:100;not null;index" json:"department"`
	Semester    int            `gorm:"not null;index" json:"semester"`
	TeacherID   *uuid.UUID     `gorm:"type:uuid;index" json:"teacherId,omitempty"`
	Teacher     *User          `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"`
	Syllabus    datatypes.JSON `json:"syllabus,omitempty"`
}

const (
	ExamInternal  = "internal"
	ExamMidterm   = "midterm"
	ExamFinal     = "final"
	ExamPractical = "practical"
)

type Exam struct {
	Base
	Name         string    `gorm:"size:150;not null" json:"name"`
	Type         string    `gorm:"size:20;not null" json:"type"`
	SubjectID    uuid.UUID `gorm:"type:uuid;not null;index" json:"subjectId"`
	Subject      *Subject  `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	Date         time.Time `json:"date"`
	Duration     int       `json:"duration"`
	MaximumMarks float64   `gorm:"not null" json:"maximumMarks"`
	Venue        string    `gorm:"size:150" json:"venue"`
	CreatedByID  uuid.UUID `gorm:"type:uuid" json:"createdById"`
}

const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLeave   = "leave"
)

type Attendance struct {
	Base
	StudentID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_student_subject_date" json:"studentId"`
	SubjectID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_student_subject_date;index" json:"subjectId"`
	Date       time.Time `gorm:"not null;uniqueIndex:idx_attendance_student_subject_date" json:"date"`
	Status     string    `gorm:"size:10;not null" json:"status"`
	MarkedByID uuid.UUID `gorm:"type:uuid" json:"markedById"`
	Remarks    string    `gorm:"size:255" json:"remarks,omitempty"`
	Student    *User     `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Subject    *Subject  `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
}

type Grade struct {
	Base
	StudentID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_grade_student_exam" json:"studentId"`
	ExamID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_grade_student_exam" json:"examId"`
	SubjectID     uuid.UUID `gorm:"type:uuid;not null;index" json:"subjectId"`
	MarksObtained float64   `gorm:"not null" json:"marksObtained"`
	MaximumMarks  float64   `gorm:"not null" json:"maximumMarks"`
	Grade         string    `gorm:"size:3;not null" json:"grade"`
	Remarks       string    `gorm:"size:255" json:"remarks,omitempty"`
	GradedByID    uuid.UUID `gorm:"type:uuid" json:"gradedById"`
	Student       *User     `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Exam          *Exam     `gorm:"foreignKey:ExamID" json:"exam,omitempty"`
	Subject       *Subject  `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
}

func (g *Grade) Percentage() float64 {
	if g.MaximumMarks <= 0 {
		return 0
	}
	return g.MarksObtained / g.MaximumMarks * 100
}

type Assignment struct {
	Base
	Title        string                      `gorm:"size:200;not null" json:"title"`
	Description  string                      `gorm:"type:text" json:"description"`
	SubjectID    uuid.UUID                   `gorm:"type:uuid;not null;index" json:"subjectId"`
	Subject      *Subject                    `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	TeacherID    uuid.UUID                   `gorm:"type:uuid;not null;index" json:"teacherId"`
	DueDate      time.Time                   `gorm:"not null;index" json:"dueDate"`
	MaximumMarks float64                     `gorm:"not null" json:"maximumMarks"`
	Attachments  datatypes.JSONSlice[string] `json:"attachments"`
	Submissions  []Submission                `gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE" json:"submissions,omitempty"`
}

const (
	SubmissionSubmitted = "submitted"
	SubmissionLate      = "late"
	SubmissionGraded    = "graded"
)

type Submission struct {
	Base
	AssignmentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submission_assignment_student" json:"assignmentId"`
	StudentID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submission_assignment_student" json:"studentId"`
	Student      *User     `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	FileURL      string    `gorm:"size:500;not null" json:"fileUrl"`
	SubmittedAt  time.Time `json:"submittedAt"`
	Status       string    `gorm:"size:20;not null" json:"status"`
	Marks        *float64  `json:"marks,omitempty"`
	Feedback     *string   `gorm:"type:text" json:"feedback,omitempty"`
}
