package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestErrorEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		write  func(*gin.Context)
		status int
		code   string
	}{
		{"bad request", func(c *gin.Context) { BadRequest(c, "x") }, http.StatusBadRequest, CodeBadRequest},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "x") }, http.StatusUnauthorized, CodeUnauthorized},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "x") }, http.StatusForbidden, CodeForbidden},
		{"not found", func(c *gin.Context) { NotFound(c, "x") }, http.StatusNotFound, CodeNotFound},
		{"conflict", func(c *gin.Context) { Conflict(c, "x") }, http.StatusConflict, CodeConflict},
		{"internal", func(c *gin.Context) { InternalError(c, "x") }, http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			tt.write(c)

			if rr.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rr.Code)
			}
			var resp Response
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.code || resp.Error.Message != "x" {
				t.Errorf("Unexpected envelope %+v", resp)
			}
		})
	}
}

func TestSuccessOmitsError(t *testing.T) {
	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	Success(c, []string{"a"})

	if got := rr.Body.String(); got != `{"success":true,"data":["a"]}` {
		t.Errorf("Unexpected body %s", got)
	}
}
