package utils

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	MaxPage      = 100000
)

type Pagination struct {
	Page  int
	Limit int
}

type PaginationMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// ParsePagination reads page and limit from the query string, falling back to
// defaultLimit and clamping to MaxLimit and MaxPage.
func ParsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return NewPagination(c.Query("page"), c.Query("limit"), defaultLimit)
}

func NewPagination(pageStr, limitStr string, defaultLimit int) Pagination {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Pagination{Page: page, Limit: limit}
}

func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (min(p.Page, MaxPage) - 1) * p.Limit
}

func (p Pagination) Meta(total int64) PaginationMeta {
	return PaginationMeta{
		Page:  p.Page,
		Limit: p.Limit,
		Total: total,
		Pages: int(math.Ceil(float64(total) / float64(p.Limit))),
	}
}
