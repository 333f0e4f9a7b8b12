// Package importer reads timetable exports into lesson rows.
package importer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ilker/timetable-server/internal/models"
	"github.com/xuri/excelize/v2"
)

// Column order of a lesson sheet. The teacher column is optional.
const (
	colSubject = iota
	colGrade
	colGroup
	colLesson
	colDay
	colRoom
	colTeacher
)

var ErrNoSheet = errors.New("workbook has no sheets")

// ParseLessonSheet reads the first sheet of an xlsx workbook. Row 1 is a
// header. Empty rows are dropped; everything else is returned as is and left
// to the import validation, with unparseable numbers read as 0.
func ParseLessonSheet(r io.Reader) ([]models.LessonRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) <= 1 {
		return []models.LessonRow{}, nil
	}

	out := make([]models.LessonRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		out = append(out, models.LessonRow{
			Subject: models.FlexString(cell(cells, colSubject)),
			Grade:   models.FlexString(cell(cells, colGrade)),
			Group:   models.FlexString(cell(cells, colGroup)),
			Lesson:  number(cell(cells, colLesson)),
			Day:     number(cell(cells, colDay)),
			Room:    models.FlexString(cell(cells, colRoom)),
			Teacher: models.FlexString(cell(cells, colTeacher)),
		})
	}
	return out, nil
}

func cell(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func number(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// Spreadsheets store whole numbers as floats now and then ("3.0").
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f)
	}
	return 0
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
