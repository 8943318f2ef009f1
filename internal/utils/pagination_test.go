package utils

import (
	"math"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query string
		want  PaginationParams
	}{
		{"", PaginationParams{Page: 1, Limit: 20, Offset: 0}},
		{"page=3&limit=10", PaginationParams{Page: 3, Limit: 10, Offset: 20}},
		{"page=0&limit=500", PaginationParams{Page: 1, Limit: 20, Offset: 0}},
		{"page=abc&limit=-1", PaginationParams{Page: 1, Limit: 20, Offset: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/api/tasks?"+tt.query, nil)
			assert.Equal(t, tt.want, GetPaginationParams(c))
		})
	}
}

func TestGetPaginationParams_HugePageIsCapped(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/tasks?limit=10&page="+strconv.Itoa(math.MaxInt), nil)

	got := GetPaginationParams(c)
	assert.Equal(t, 10, got.Limit)
	assert.Equal(t, math.MaxInt/10, got.Page)
	assert.Equal(t, (math.MaxInt/10-1)*10, got.Offset)
	assert.GreaterOrEqual(t, got.Offset, 0)
}
