package controllers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"remedial_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	importTypeQuarter = "quarter"
	importTypeWeekly  = "weekly"
)

type remedialImportStats struct {
	TotalRows       int      `json:"total_rows"`
	QuartersCreated int      `json:"quarters_created"`
	QuartersSkipped int      `json:"quarters_skipped"`
	WeeklyCreated   int      `json:"weekly_created"`
	WeeklySkipped   int      `json:"weekly_skipped"`
	ParseErrors     []string `json:"parse_errors,omitempty"`
}

type remedialImportRow struct {
	quarter *QuarterRequest
	weekly  *WeeklyScheduleRequest
}

// Import loads remedial quarters and weekly schedules from a CSV or XLSX file
// with columns: type, school_year, start_month, end_month, subject, day_of_week.
func (rc *RemedialController) Import(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	if !utils.IsValidFileExtension(fileHeader.Filename, []string{"csv", "xlsx"}) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported file type (csv, xlsx)"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot open file"})
	}
	defer file.Close()

	var rows [][]string
	if strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		rows, err = readCSV(file)
	} else {
		rows, err = readXLSX(file)
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if len(rows) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is empty"})
	}

	col := buildColumnIndex(rows[0])
	for _, key := range []string{"type", "school_year", "start_month", "end_month", "subject", "day_of_week"} {
		if _, ok := col[key]; !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("missing column: %s", key)})
		}
	}

	stats := &remedialImportStats{}
	parsed := make([]remedialImportRow, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		if isRowEmpty(rows[i]) {
			continue
		}
		stats.TotalRows++
		r, err := parseRemedialRow(rows[i], col, i+1)
		if err != nil {
			stats.ParseErrors = append(stats.ParseErrors, err.Error())
			continue
		}
		parsed = append(parsed, r)
	}
	if len(parsed) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no valid data rows found", "parse_errors": stats.ParseErrors})
	}

	err = rc.db.Transaction(func(tx *gorm.DB) error {
		for _, r := range parsed {
			switch {
			case r.quarter != nil:
				created, err := ensureQuarter(tx, *r.quarter)
				if err != nil {
					return err
				}
				if created {
					stats.QuartersCreated++
				} else {
					stats.QuartersSkipped++
				}
			case r.weekly != nil:
				_, created, err := ensureWeeklySchedule(tx, *r.weekly)
				if err != nil {
					return err
				}
				if created {
					stats.WeeklyCreated++
				} else {
					stats.WeeklySkipped++
				}
			}
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	rc.invalidate(c)

	return c.JSON(fiber.Map{
		"success":   true,
		"file_name": fileHeader.Filename,
		"stats":     stats,
	})
}

func parseRemedialRow(row []string, col map[string]int, rowNum int) (remedialImportRow, error) {
	switch strings.ToLower(getValue(row, col, "type")) {
	case importTypeQuarter:
		start, err1 := strconv.Atoi(getValue(row, col, "start_month"))
		end, err2 := strconv.Atoi(getValue(row, col, "end_month"))
		if err1 != nil || err2 != nil {
			return remedialImportRow{}, fmt.Errorf("row %d: start_month and end_month must be numbers", rowNum)
		}
		req := QuarterRequest{
			SchoolYear: getValue(row, col, "school_year"),
			Label:      getValue(row, col, "label"),
			StartMonth: start,
			EndMonth:   end,
		}
		if err := validate.Struct(req); err != nil {
			return remedialImportRow{}, fmt.Errorf("row %d: invalid quarter %v", rowNum, validationErrors(err))
		}
		return remedialImportRow{quarter: &req}, nil

	case importTypeWeekly:
		req := WeeklyScheduleRequest{
			Subject:   getValue(row, col, "subject"),
			DayOfWeek: getValue(row, col, "day_of_week"),
		}
		if err := validate.Struct(req); err != nil {
			return remedialImportRow{}, fmt.Errorf("row %d: invalid weekly schedule %v", rowNum, validationErrors(err))
		}
		return remedialImportRow{weekly: &req}, nil
	}
	return remedialImportRow{}, fmt.Errorf("row %d: type must be quarter or weekly", rowNum)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	// Use first sheet
	sht := f.GetSheetName(0)
	if sht == "" {
		sht = "Sheet1"
	}
	return f.GetRows(sht)
}

// buildColumnIndex maps lower-cased, trimmed header names to their column
func buildColumnIndex(header []string) map[string]int {
	m := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		if _, dup := m[key]; !dup {
			m[key] = i
		}
	}
	return m
}

func isRowEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func getValue(row []string, col map[string]int, key string) string {
	idx, ok := col[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
