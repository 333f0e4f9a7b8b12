package repository

import (
	"context"
	"testing"

	"github.com/ilker/timetable-server/internal/models"
	"gorm.io/gorm"
)

func TestWithConnectionQueriesAreIndependent(t *testing.T) {
	ctx := context.Background()
	db := setupDatabase(t)

	db.DB.Create(&models.Course{Grade: "10", Subject: "M", Group: "a"})

	var courses []models.Course
	var lessons []models.Lesson
	err := db.WithConnection(ctx, func(conn *gorm.DB) error {
		if err := conn.Order("grade, subject, group_name").Where("grade = ?", "10").Find(&courses).Error; err != nil {
			return err
		}
		// Neither the order nor the filter of the first query applies here.
		return conn.Order("day, lesson, course_id").Find(&lessons).Error
	})
	if err != nil {
		t.Fatalf("WithConnection failed: %v", err)
	}
	if len(courses) != 1 || len(lessons) != 0 {
		t.Errorf("Expected 1 course and no lessons, got %d and %d", len(courses), len(lessons))
	}
}

func TestRebuildOnEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	tt, _ := setupTimeTable(t)

	if err := tt.RebuildCourseList(ctx); err != nil {
		t.Fatalf("RebuildCourseList failed: %v", err)
	}
	lessons, err := tt.GetAllLessons(ctx)
	if err != nil {
		t.Fatalf("GetAllLessons failed: %v", err)
	}
	if lessons == nil || len(lessons) != 0 {
		t.Errorf("Expected empty lesson list, got %#v", lessons)
	}
}
