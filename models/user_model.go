package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

type Profile struct {
	FirstName   string     `gorm:"size:100" json:"firstName"`
	LastName    string     `gorm:"size:100" json:"lastName"`
	Phone       string     `gorm:"size:30" json:"phone"`
	Address     string     `gorm:"type:text" json:"address"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Gender      string     `gorm:"size:10" json:"gender"`
	Avatar      *string    `gorm:"size:500" json:"avatar,omitempty"`
}

// User is the common account record. Exactly one of Student, Teacher or Admin is
// populated and it must match Role.
type User struct {
	Base
	Email    string  `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password string  `gorm:"not null" json:"-"`
	Role     Role    `gorm:"size:20;not null;index" json:"role"`
	Profile  Profile `gorm:"embedded;embeddedPrefix:profile_" json:"profile"`
	IsActive bool    `gorm:"not null" json:"isActive"`

	LastLogin                   *time.Time `json:"lastLogin,omitempty"`
	ResetPasswordToken          *string    `gorm:"size:255;index" json:"-"`
	ResetPasswordTokenExpiresAt *time.Time `json:"-"`

	Student *StudentProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
	Teacher *TeacherProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"teacher,omitempty"`
	Admin   *AdminProfile   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"admin,omitempty"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.Profile.FirstName + " " + u.Profile.LastName)
}

// Validate checks that the populated variant agrees with the role tag.
func (u *User) Validate() error {
	if !u.Role.Valid() {
		return fmt.Errorf("unknown role %q", u.Role)
	}
	populated := 0
	for _, set := range []bool{u.Student != nil, u.Teacher != nil, u.Admin != nil} {
		if set {
			populated++
		}
	}
	if populated > 1 {
		return fmt.Errorf("user carries more than one role variant")
	}
	switch u.Role {
	case RoleStudent:
		if u.Teacher != nil || u.Admin != nil {
			return fmt.Errorf("student user cannot carry %s fields", otherVariant(u))
		}
	case RoleTeacher:
		if u.Student != nil || u.Admin != nil {
			return fmt.Errorf("teacher user cannot carry %s fields", otherVariant(u))
		}
	case RoleAdmin:
		if u.Student != nil || u.Teacher != nil {
			return fmt.Errorf("admin user cannot carry %s fields", otherVariant(u))
		}
	}
	return nil
}

func otherVariant(u *User) string {
	switch {
	case u.Student != nil && u.Role != RoleStudent:
		return "student"
	case u.Teacher != nil && u.Role != RoleTeacher:
		return "teacher"
	default:
		return "admin"
	}
}

type AcademicInfo struct {
	AdmissionDate   time.Time `json:"admissionDate"`
	CurrentSemester int       `json:"currentSemester"`
	Department      string    `gorm:"size:100;index" json:"department"`
	Program         string    `gorm:"size:100" json:"program"`
	Batch           string    `gorm:"size:50;index" json:"batch"`
}

type ParentInfo struct {
	FatherName  string `gorm:"size:150" json:"fatherName"`
	MotherName  string `gorm:"size:150" json:"motherName"`
	ParentPhone string `gorm:"size:30" json:"parentPhone"`
	ParentEmail string `gorm:"size:255" json:"parentEmail"`
}

type StudentProfile struct {
	UserID       uuid.UUID    `gorm:"type:uuid;primaryKey" json:"-"`
	StudentID    string       `gorm:"size:20;not null;uniqueIndex" json:"studentId"`
	AcademicInfo AcademicInfo `gorm:"embedded" json:"academicInfo"`
	ParentInfo   ParentInfo   `gorm:"embedded" json:"parentInfo"`
}

type TeacherProfile struct {
	UserID         uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"-"`
	EmployeeID     string                      `gorm:"size:20;not null;uniqueIndex" json:"employeeId"`
	Department     string                      `gorm:"size:100;index" json:"department"`
	Designation    string                      `gorm:"size:100" json:"designation"`
	Qualifications datatypes.JSONSlice[string] `json:"qualifications"`
	Subjects       datatypes.JSONSlice[string] `json:"subjects"`
	JoiningDate    time.Time                   `json:"joiningDate"`
	Salary         float64                     `gorm:"type:numeric(12,2)" json:"salary"`
}

type AdminProfile struct {
	UserID      uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"-"`
	AdminID     string                      `gorm:"size:20;not null;uniqueIndex" json:"adminId"`
	Permissions datatypes.JSONSlice[string] `json:"permissions"`
}
