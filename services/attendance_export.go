package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"remedial_go/models"
	"remedial_go/services/attendance"
	"remedial_go/storage"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxExportDays   = 366
	exportSheet     = "Attendance"
)

// AttendanceExporter renders reconciled attendance into a workbook of
// students by admissible session dates.
type AttendanceExporter struct {
	db    *gorm.DB
	svc   *attendance.Service
	store storage.ObjectStore
	now   func() time.Time
}

func NewAttendanceExporter(db *gorm.DB, svc *attendance.Service, store storage.ObjectStore) *AttendanceExporter {
	return &AttendanceExporter{db: db, svc: svc, store: store, now: time.Now}
}

type ExportRequest struct {
	Subject string
	Start   string
	End     string
	GradeID *uint
}

type ExportFile struct {
	FileName    string
	Content     []byte
	RecordCount int
}

// Build renders the workbook for req
func (e *AttendanceExporter) Build(ctx context.Context, req ExportRequest) (*ExportFile, error) {
	w, err := e.svc.Window(ctx, req.Subject)
	if err != nil {
		return nil, err
	}
	dates, err := admissibleDates(w, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	var students []models.Student
	q := e.db.WithContext(ctx).Order("code")
	if req.GradeID != nil && *req.GradeID != 0 {
		q = q.Where("grade_id = ?", *req.GradeID)
	}
	if err := q.Find(&students).Error; err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	ids := make([]uint, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}

	var records []attendance.RecordView
	if len(ids) > 0 {
		records, err = e.svc.Fetch(ctx, attendance.FetchQuery{Subject: req.Subject, Start: req.Start, End: req.End, StudentIDs: ids})
		if err != nil {
			return nil, err
		}
	}
	marks := make(map[uint]map[string]string, len(students))
	for _, r := range records {
		if marks[r.StudentID] == nil {
			marks[r.StudentID] = map[string]string{}
		}
		marks[r.StudentID][r.Date] = r.Present
	}

	content, err := renderWorkbook(students, dates, marks)
	if err != nil {
		return nil, err
	}
	return &ExportFile{
		FileName:    fmt.Sprintf("remedial_%s_%s_%s.xlsx", w.Subject, req.Start, req.End),
		Content:     content,
		RecordCount: len(records),
	}, nil
}

// Archive builds the workbook, uploads it and records an ExportArchive row.
// A failed upload is still recorded with status failed.
func (e *AttendanceExporter) Archive(ctx context.Context, req ExportRequest, userID uint) (*models.ExportArchive, error) {
	if e.store == nil {
		return nil, storage.ErrNotConfigured
	}
	file, err := e.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	subject, _ := attendance.NormalizeSubject(req.Subject)

	row := models.ExportArchive{
		Kind:            models.ArchiveAttendance,
		FileName:        file.FileName,
		S3Key:           storage.ObjectKey("exports/attendance", file.FileName, e.now()),
		Subject:         subject,
		StartDate:       models.Date(req.Start),
		EndDate:         models.Date(req.End),
		RecordCount:     file.RecordCount,
		FileSize:        int64(len(file.Content)),
		Status:          "completed",
		CreatedByUserID: userID,
	}

	uploadErr := e.store.Put(ctx, row.S3Key, XLSXContentType, file.Content)
	if uploadErr != nil {
		row.Status = "failed"
		row.Error = uploadErr.Error()
	}
	if err := e.db.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("Failed to save export archive metadata for %s: %v", row.S3Key, err)
		if uploadErr == nil {
			return nil, err
		}
	}
	if uploadErr != nil {
		return &row, uploadErr
	}
	return &row, nil
}

// admissibleDates lists the session dates of w between start and end inclusive
func admissibleDates(w attendance.Window, start, end string) ([]string, error) {
	from, err := attendance.ParseDate(start)
	if err != nil {
		return nil, fmt.Errorf("%w: start", attendance.ErrInvalidDate)
	}
	to, err := attendance.ParseDate(end)
	if err != nil {
		return nil, fmt.Errorf("%w: end", attendance.ErrInvalidDate)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end before start", attendance.ErrInvalidDate)
	}
	if to.Sub(from) > maxExportDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range longer than %d days", attendance.ErrInvalidDate, maxExportDays)
	}

	var dates []string
	if !w.Configured {
		return dates, nil
	}
	months, weekdays := w.Sets()
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		s := d.Format(models.DateLayout)
		if attendance.IsAdmissible(s, months, weekdays) {
			dates = append(dates, s)
		}
	}
	return dates, nil
}

func renderWorkbook(students []models.Student, dates []string, marks map[uint]map[string]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, err
	}

	header := []interface{}{"Code", "Name"}
	for _, d := range dates {
		header = append(header, d)
	}
	header = append(header, "Present", "Absent")
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, s := range students {
		row := []interface{}{s.Code, s.FullName()}
		present, absent := 0, 0
		for _, d := range dates {
			mark := ""
			switch marks[s.ID][d] {
			case attendance.PresentYes:
				mark = "P"
				present++
			case attendance.PresentNo:
				mark = "A"
				absent++
			}
			row = append(row, mark)
		}
		row = append(row, present, absent)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{Freeze: true, XSplit: 2, YSplit: 1, TopLeftCell: "C2", ActivePane: "bottomRight"}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}
