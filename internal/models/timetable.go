package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// Course is a class section identified by (grade, subject, group).
type Course struct {
	ID      uint    `gorm:"primaryKey" json:"id"`
	Grade   string  `gorm:"size:20;not null;uniqueIndex:idx_course_fields" json:"grade"`
	Subject string  `gorm:"size:60;not null;uniqueIndex:idx_course_fields" json:"subject"`
	Group   string  `gorm:"column:group_name;size:60;not null;uniqueIndex:idx_course_fields" json:"group"`
	Teacher *string `gorm:"size:20;index" json:"teacher"`
}

// Lesson is one weekly occurrence of a course.
type Lesson struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	CourseID uint   `gorm:"not null;uniqueIndex:idx_lesson_slot" json:"courseId"`
	Course   Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course"`
	Lesson   int    `gorm:"not null;uniqueIndex:idx_lesson_slot" json:"lesson"` // period index
	Day      int    `gorm:"not null;uniqueIndex:idx_lesson_slot" json:"day"`    // 1=Mon, 7=Sun
	Room     string `gorm:"size:20" json:"room"`
}

func NewLesson(course Course, lesson, day int, room string) *Lesson {
	return &Lesson{
		CourseID: course.ID,
		Course:   course,
		Lesson:   lesson,
		Day:      day,
		Room:     room,
	}
}

// FlexString accepts a JSON string or number. Timetable exports are not
// consistent about quoting grades and rooms.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string {
	return strings.TrimSpace(string(s))
}

// LessonRow is one entry of a bulk lesson import.
type LessonRow struct {
	Subject FlexString `json:"subject"`
	Grade   FlexString `json:"grade"`
	Group   FlexString `json:"group"`
	Lesson  int        `json:"lesson"`
	Day     int        `json:"day"`
	Room    FlexString `json:"room"`
	Teacher FlexString `json:"teacher"`
}

var (
	errMissingCourseFields = errors.New("subject, grade and group are required")
	errInvalidLesson       = errors.New("lesson must be at least 1")
	errInvalidDay          = errors.New("day must be between 1 and 7")
)

func (r LessonRow) Validate() error {
	if r.Subject.String() == "" || r.Grade.String() == "" || r.Group.String() == "" {
		return errMissingCourseFields
	}
	if r.Lesson < 1 {
		return errInvalidLesson
	}
	if r.Day < 1 || r.Day > 7 {
		return errInvalidDay
	}
	return nil
}
