package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/ilker/timetable-server/internal/cache"
	"github.com/ilker/timetable-server/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const timeTableLabel = "TimeTable"

// Cache keys of the derived lists.
const (
	coursesKey = "courses"
	lessonsKey = "lessons"
	gradesKey  = "grades"
)

// TimeTable stores courses and lessons. The course, lesson and grade lists are
// served from a cache that is only refreshed by RebuildCourseList (or built on
// first use); writes do not invalidate it.
type TimeTable struct {
	conns ConnectionSource
	cache cache.ListCache

	rebuildMu sync.Mutex
}

func NewTimeTable(conns ConnectionSource, lists cache.ListCache) *TimeTable {
	return &TimeTable{conns: conns, cache: lists}
}

type snapshot struct {
	Courses []models.Course
	Lessons []models.Lesson
	Grades  []string
}

// ImportResult counts the outcome of ImportLessons.
type ImportResult struct {
	Imported int
	Skipped  int
}

// GetCourseByFields looks a course up by its natural key. It returns nil, nil
// when there is no such course.
func (t *TimeTable) GetCourseByFields(ctx context.Context, subject, grade, group string) (*models.Course, error) {
	var course models.Course
	found := false
	err := t.conns.WithConnection(ctx, func(conn *gorm.DB) error {
		res := conn.Where(map[string]any{"subject": subject, "grade": grade, "group_name": group}).
			Limit(1).Find(&course)
		found = res.RowsAffected > 0
		return res.Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to look up course",
			"label", timeTableLabel, "function", "GetCourseByFields",
			"subject", subject, "grade", grade, "group", group, "error", err)
		return nil, fmt.Errorf("get course by fields: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &course, nil
}

// AddCourse persists c and returns it with its assigned id.
func (t *TimeTable) AddCourse(ctx context.Context, c *models.Course) (*models.Course, error) {
	err := t.conns.WithConnection(ctx, func(conn *gorm.DB) error {
		return conn.Create(c).Error
	})
	if err != nil {
		// Duplicates are expected when two imports race for the same course.
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			slog.ErrorContext(ctx, "failed to add course",
				"label", timeTableLabel, "function", "AddCourse",
				"subject", c.Subject, "grade", c.Grade, "group", c.Group, "error", err)
		}
		return nil, fmt.Errorf("add course: %w", err)
	}
	return c, nil
}

// FindOrCreateCourse returns the course for (subject, grade, group), creating
// it with the given teacher if it does not exist yet. An existing course
// without a teacher takes the given one.
func (t *TimeTable) FindOrCreateCourse(ctx context.Context, subject, grade, group, teacher string) (*models.Course, error) {
	course, err := t.GetCourseByFields(ctx, subject, grade, group)
	if err != nil {
		return nil, err
	}
	if course != nil {
		if course.Teacher == nil && teacher != "" {
			if err := t.setTeacher(ctx, course, teacher); err != nil {
				return nil, err
			}
		}
		return course, nil
	}

	newCourse := &models.Course{Grade: grade, Subject: subject, Group: group}
	if teacher != "" {
		newCourse.Teacher = &teacher
	}
	course, err = t.AddCourse(ctx, newCourse)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		course, err = t.GetCourseByFields(ctx, subject, grade, group)
		if err == nil && course == nil {
			err = fmt.Errorf("course %s/%s/%s vanished after duplicate insert", grade, subject, group)
		}
	}
	return course, err
}

func (t *TimeTable) setTeacher(ctx context.Context, c *models.Course, teacher string) error {
	err := t.conns.WithConnection(ctx, func(conn *gorm.DB) error {
		return conn.Model(c).Update("teacher", teacher).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to set course teacher",
			"label", timeTableLabel, "function", "FindOrCreateCourse",
			"course_id", c.ID, "teacher", teacher, "error", err)
		return fmt.Errorf("set teacher of course %d: %w", c.ID, err)
	}
	c.Teacher = &teacher
	return nil
}

// AddLesson persists l. The lesson's course must already exist.
func (t *TimeTable) AddLesson(ctx context.Context, l *models.Lesson) error {
	if l.CourseID == 0 {
		l.CourseID = l.Course.ID
	}
	err := t.conns.WithConnection(ctx, func(conn *gorm.DB) error {
		return conn.Omit(clause.Associations).Create(l).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to add lesson",
			"label", timeTableLabel, "function", "AddLesson",
			"course_id", l.CourseID, "day", l.Day, "lesson", l.Lesson, "error", err)
		return fmt.Errorf("add lesson: %w", err)
	}
	return nil
}

// ImportLessons adds one lesson per row, creating courses as needed. A row
// that is invalid or fails to persist is logged and skipped.
func (t *TimeTable) ImportLessons(ctx context.Context, rows []models.LessonRow) ImportResult {
	var res ImportResult
	for i, row := range rows {
		if err := row.Validate(); err != nil {
			slog.WarnContext(ctx, "skipping lesson row",
				"label", timeTableLabel, "row", i, "reason", err)
			res.Skipped++
			continue
		}

		course, err := t.FindOrCreateCourse(ctx, row.Subject.String(), row.Grade.String(), row.Group.String(), row.Teacher.String())
		if err != nil {
			slog.WarnContext(ctx, "skipping lesson row, course unavailable",
				"label", timeTableLabel, "row", i, "error", err)
			res.Skipped++
			continue
		}

		lesson := models.NewLesson(*course, row.Lesson, row.Day, row.Room.String())
		if err := t.AddLesson(ctx, lesson); err != nil {
			slog.WarnContext(ctx, "skipping lesson row, insert failed",
				"label", timeTableLabel, "row", i, "error", err)
			res.Skipped++
			continue
		}
		res.Imported++
	}
	return res
}

// GetCourseByTeacherDayLesson returns the courses of teacher that meet on
// weekday in period lesson.
func (t *TimeTable) GetCourseByTeacherDayLesson(ctx context.Context, teacher string, weekday, lesson int) ([]models.Course, error) {
	courses := []models.Course{}
	err := t.conns.WithConnection(ctx, func(conn *gorm.DB) error {
		return conn.Model(&models.Course{}).
			Distinct().
			Joins("JOIN lessons ON lessons.course_id = courses.id").
			Where("courses.teacher = ? AND lessons.day = ? AND lessons.lesson = ?", teacher, weekday, lesson).
			Order("courses.id").
			Find(&courses).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to find courses",
			"label", timeTableLabel, "function", "GetCourseByTeacherDayLesson",
			"teacher", teacher, "weekday", weekday, "lesson", lesson, "error", err)
		return nil, fmt.Errorf("find courses: %w", err)
	}
	return courses, nil
}

func (t *TimeTable) GetAllCourses(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if t.load(ctx, coursesKey, &courses) {
		return courses, nil
	}
	s, err := t.rebuild(ctx)
	if s == nil {
		return nil, err
	}
	return s.Courses, nil
}

func (t *TimeTable) GetAllLessons(ctx context.Context) ([]models.Lesson, error) {
	var lessons []models.Lesson
	if t.load(ctx, lessonsKey, &lessons) {
		return lessons, nil
	}
	s, err := t.rebuild(ctx)
	if s == nil {
		return nil, err
	}
	return s.Lessons, nil
}

// GetGrades returns the distinct grades of all courses, numeric grades first in
// numeric order.
func (t *TimeTable) GetGrades(ctx context.Context) ([]string, error) {
	var grades []string
	if t.load(ctx, gradesKey, &grades) {
		return grades, nil
	}
	s, err := t.rebuild(ctx)
	if s == nil {
		return nil, err
	}
	return s.Grades, nil
}

// RebuildCourseList reloads the cached lists from the database.
func (t *TimeTable) RebuildCourseList(ctx context.Context) error {
	_, err := t.rebuild(ctx)
	return err
}

// rebuild returns a nil snapshot only when the database read failed. A cache
// write failure still yields the fresh snapshot together with the error.
func (t *TimeTable) rebuild(ctx context.Context) (*snapshot, error) {
	t.rebuildMu.Lock()
	defer t.rebuildMu.Unlock()

	s := &snapshot{Courses: []models.Course{}, Lessons: []models.Lesson{}}
	err := t.conns.WithConnection(ctx, func(conn *gorm.DB) error {
		if err := conn.Order("grade, subject, group_name").Find(&s.Courses).Error; err != nil {
			return err
		}
		return conn.Preload("Course").Order("day, lesson, course_id").Find(&s.Lessons).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to read timetable",
			"label", timeTableLabel, "function", "RebuildCourseList", "error", err)
		return nil, fmt.Errorf("rebuild timetable: %w", err)
	}
	s.Grades = distinctGrades(s.Courses)

	for key, v := range map[string]any{coursesKey: s.Courses, lessonsKey: s.Lessons, gradesKey: s.Grades} {
		if err := t.cache.Store(ctx, key, v); err != nil {
			slog.ErrorContext(ctx, "failed to store timetable list",
				"label", timeTableLabel, "function", "RebuildCourseList", "key", key, "error", err)
			return s, fmt.Errorf("store %s: %w", key, err)
		}
	}

	slog.InfoContext(ctx, "timetable rebuilt",
		"courses", len(s.Courses), "lessons", len(s.Lessons), "grades", len(s.Grades))
	return s, nil
}

func (t *TimeTable) load(ctx context.Context, key string, dst any) bool {
	ok, err := t.cache.Load(ctx, key, dst)
	if err != nil {
		slog.WarnContext(ctx, "timetable cache read failed",
			"label", timeTableLabel, "key", key, "error", err)
		return false
	}
	return ok
}

func distinctGrades(courses []models.Course) []string {
	seen := make(map[string]struct{}, len(courses))
	grades := []string{}
	for _, c := range courses {
		if _, ok := seen[c.Grade]; ok {
			continue
		}
		seen[c.Grade] = struct{}{}
		grades = append(grades, c.Grade)
	}

	sort.Slice(grades, func(i, j int) bool {
		a, errA := strconv.Atoi(grades[i])
		b, errB := strconv.Atoi(grades[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return grades[i] < grades[j]
		}
	})
	return grades
}
