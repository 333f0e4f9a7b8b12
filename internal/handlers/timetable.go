package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ilker/timetable-server/internal/importer"
	"github.com/ilker/timetable-server/internal/models"
	"github.com/ilker/timetable-server/internal/repository"
)

// TimeTableHandler serves the timetable routes. Unlike the account routes
// they answer with bare JSON arrays and bare status codes.
type TimeTableHandler struct {
	store    *repository.TimeTable
	maxBytes int64
}

// DefaultMaxImportBytes applies when NewTimeTableHandler gets no limit.
const DefaultMaxImportBytes = 8 << 20

func NewTimeTableHandler(store *repository.TimeTable, maxImportBytes int64) *TimeTableHandler {
	if maxImportBytes <= 0 {
		maxImportBytes = DefaultMaxImportBytes
	}
	return &TimeTableHandler{store: store, maxBytes: maxImportBytes}
}

type FindCourseRequest struct {
	Teacher string `json:"teacher" binding:"required"`
	Weekday int    `json:"weekday" binding:"required,min=1,max=7"`
	Lesson  int    `json:"lesson" binding:"required,min=1"`
}

// @Summary Import lessons
// @Description Adds every well-formed row, skips the rest and rebuilds the cached lists
// @Tags timetable
// @Accept json
// @Param body body []models.LessonRow true "lessons"
// @Success 200
// @Failure 401
// @Failure 413
// @Security BearerAuth
// @Router /timetable/lessons [post]
func (h *TimeTableHandler) PostLessons(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.WarnContext(ctx, "lesson import too large", "limit", tooLarge.Limit)
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		slog.WarnContext(ctx, "failed to read lesson import", "error", err)
		c.Status(http.StatusOK)
		return
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		slog.WarnContext(ctx, "lesson import is not a JSON array", "error", err)
		c.Status(http.StatusOK)
		return
	}

	rows := make([]models.LessonRow, 0, len(raw))
	undecodable := 0
	for i, r := range raw {
		var row models.LessonRow
		if err := json.Unmarshal(r, &row); err != nil {
			slog.WarnContext(ctx, "skipping lesson row", "row", i, "reason", err)
			undecodable++
			continue
		}
		rows = append(rows, row)
	}

	h.importRows(c, rows, undecodable)
	c.Status(http.StatusOK)
}

// @Summary Import lessons from a spreadsheet
// @Description First sheet, header row, columns subject, grade, group, lesson, day, room and an optional teacher
// @Tags timetable
// @Accept multipart/form-data
// @Param file formData file true "xlsx workbook"
// @Success 200
// @Failure 400
// @Failure 401
// @Security BearerAuth
// @Router /timetable/lessons/import [post]
func (h *TimeTableHandler) ImportLessons(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	header, err := c.FormFile("file")
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	f, err := header.Open()
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	defer f.Close()

	rows, err := importer.ParseLessonSheet(f)
	if err != nil {
		slog.WarnContext(c.Request.Context(), "unreadable lesson sheet",
			"filename", header.Filename, "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	h.importRows(c, rows, 0)
	c.Status(http.StatusOK)
}

func (h *TimeTableHandler) importRows(c *gin.Context, rows []models.LessonRow, skipped int) {
	ctx := c.Request.Context()
	res := h.store.ImportLessons(ctx, rows)
	slog.InfoContext(ctx, "lessons imported",
		"imported", res.Imported, "skipped", res.Skipped+skipped)

	// Errors are logged by the store; the import itself already happened.
	_ = h.store.RebuildCourseList(ctx)
}

// @Summary Find courses of a teacher
// @Description Courses the teacher has on the given weekday and period
// @Tags timetable
// @Accept json
// @Produce json
// @Param body body FindCourseRequest true "teacher, weekday (1=Monday) and period"
// @Success 200 {array} models.Course
// @Failure 400
// @Failure 401
// @Failure 500
// @Security BearerAuth
// @Router /timetable/find/course [post]
func (h *TimeTableHandler) FindCourse(c *gin.Context) {
	var req FindCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	courses, err := h.store.GetCourseByTeacherDayLesson(c.Request.Context(), req.Teacher, req.Weekday, req.Lesson)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, courses)
}

// @Summary List grades
// @Tags timetable
// @Produce json
// @Success 200 {array} string
// @Failure 401
// @Failure 500
// @Security BearerAuth
// @Router /timetable/grades [get]
func (h *TimeTableHandler) Grades(c *gin.Context) {
	grades, err := h.store.GetGrades(c.Request.Context())
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, grades)
}

// @Summary List courses
// @Tags timetable
// @Produce json
// @Success 200 {array} models.Course
// @Failure 401
// @Failure 500
// @Security BearerAuth
// @Router /timetable/courses [get]
func (h *TimeTableHandler) Courses(c *gin.Context) {
	courses, err := h.store.GetAllCourses(c.Request.Context())
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, courses)
}

// @Summary List lessons
// @Tags timetable
// @Produce json
// @Success 200 {array} models.Lesson
// @Failure 401
// @Failure 500
// @Security BearerAuth
// @Router /timetable/lessons [get]
func (h *TimeTableHandler) Lessons(c *gin.Context) {
	lessons, err := h.store.GetAllLessons(c.Request.Context())
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, lessons)
}

// @Summary Rebuild cached lists
// @Tags timetable
// @Success 200
// @Failure 401
// @Failure 500
// @Security BearerAuth
// @Router /timetable/rebuild [get]
func (h *TimeTableHandler) Rebuild(c *gin.Context) {
	if err := h.store.RebuildCourseList(c.Request.Context()); err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}
