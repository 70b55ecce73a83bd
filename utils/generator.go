package utils

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/anjiri1684/campus_manager/models"
	"gorm.io/gorm"
)

const (
	StudentIDPrefix  = "STU"
	EmployeeIDPrefix = "TCH"
	idDigits         = 6
	maxIDAttempts    = 20
)

const letterBytes = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func RandomDigits(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('0' + rand.Intn(10)))
	}
	return b.String()
}

func RandomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}

func GenerateUniqueStudentID(tx *gorm.DB) (string, error) {
	return generateUnique(tx, &models.StudentProfile{}, "student_id", StudentIDPrefix)
}

func GenerateUniqueEmployeeID(tx *gorm.DB) (string, error) {
	return generateUnique(tx, &models.TeacherProfile{}, "employee_id", EmployeeIDPrefix)
}

func generateUnique(tx *gorm.DB, model interface{}, column, prefix string) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		code := prefix + RandomDigits(idDigits)

		var count int64
		if err := tx.Model(model).Where(column+" = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique %s after %d attempts", column, maxIDAttempts)
}
