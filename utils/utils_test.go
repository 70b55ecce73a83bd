package utils_test

import (
	"testing"

	"github.com/anjiri1684/campus_manager/database/dbtest"
	"github.com/anjiri1684/campus_manager/models"
	"github.com/anjiri1684/campus_manager/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name       string
		page       string
		limit      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", "", 1, 10, 0},
		{"second page", "2", "10", 2, 10, 10},
		{"garbage", "x", "-3", 1, 10, 0},
		{"clamped", "3", "500", 3, 100, 200},
		{"huge page", "999999999999", "100", utils.MaxPage, 100, (utils.MaxPage - 1) * 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := utils.NewPagination(tt.page, tt.limit, utils.DefaultLimit)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset())
		})
	}
}

func TestPaginationMeta(t *testing.T) {
	meta := utils.NewPagination("2", "10", 10).Meta(25)
	assert.Equal(t, utils.PaginationMeta{Page: 2, Limit: 10, Total: 25, Pages: 3}, meta)
	assert.Equal(t, 0, utils.NewPagination("", "", 10).Meta(0).Pages)
}

func TestLetterGrade(t *testing.T) {
	cases := map[float64]string{
		100: "A+", 90: "A+", 89.99: "A", 80: "A", 70: "B", 65: "C",
		50: "D", 40: "E", 39.9: "F", 0: "F",
	}
	for pct, want := range cases {
		assert.Equal(t, want, utils.LetterGrade(pct), "percentage %v", pct)
	}
}

func TestPaginationOffsetOfHandBuiltValue(t *testing.T) {
	assert.Zero(t, utils.Pagination{Page: 0, Limit: 10}.Offset())
	assert.Equal(t, (utils.MaxPage-1)*10, utils.Pagination{Page: utils.MaxPage * 50, Limit: 10}.Offset())
}

func TestGradeOfUsesUnroundedPercentage(t *testing.T) {
	// 89.995% would round to 90.00 and wrongly earn an A+.
	assert.Equal(t, "A", utils.GradeOf(179.99, 200))
	assert.Equal(t, "A+", utils.GradeOf(180, 200))
	assert.Equal(t, "F", utils.GradeOf(5, 0))
}

func TestCGPAIsCreditWeighted(t *testing.T) {
	got := utils.CGPA([]utils.CreditGrade{
		{Credits: 4, Letter: "A+"},
		{Credits: 2, Letter: "C"},
		{Credits: 3, Letter: "E"},
	})
	// (16 + 4 + 1.5) / 9
	assert.Equal(t, 2.39, got)
	assert.Zero(t, utils.CGPA(nil))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 66.67, utils.Percent(2, 3))
	assert.Zero(t, utils.Percent(1, 0))
}

func TestGenerateUniqueIDs(t *testing.T) {
	db := dbtest.Open(t)

	studentID, err := utils.GenerateUniqueStudentID(db)
	require.NoError(t, err)
	assert.Regexp(t, `^STU\d{6}$`, studentID)

	require.NoError(t, db.Create(&models.StudentProfile{UserID: uuid.New(), StudentID: studentID}).Error)

	employeeID, err := utils.GenerateUniqueEmployeeID(db)
	require.NoError(t, err)
	assert.Regexp(t, `^TCH\d{6}$`, employeeID)
}

func TestRandomCode(t *testing.T) {
	code := utils.RandomCode(8)
	assert.Len(t, code, 8)
	assert.Regexp(t, `^[A-Z0-9]+$`, code)
}
