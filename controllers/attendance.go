package controllers

import (
	"errors"
	"fmt"
	"strconv"

	"remedial_go/middleware"
	"remedial_go/services"
	"remedial_go/services/attendance"
	"remedial_go/storage"
	"remedial_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type AttendanceController struct {
	svc      *attendance.Service
	exporter *services.AttendanceExporter
}

func NewAttendanceController(svc *attendance.Service, exporter *services.AttendanceExporter) *AttendanceController {
	return &AttendanceController{svc: svc, exporter: exporter}
}

// attendanceError maps service errors: validation to 400, everything else to 500
func attendanceError(c *fiber.Ctx, err error) error {
	if errors.Is(err, attendance.ErrInvalidSubject) ||
		errors.Is(err, attendance.ErrInvalidDate) ||
		errors.Is(err, attendance.ErrInvalidBody) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Path(),
		"method": c.Method(),
	}).Error("attendance request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "Failed to process attendance",
	})
}

func optionalUintQuery(c *fiber.Ctx, key string) (*uint, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a positive integer", attendance.ErrInvalidBody, key)
	}
	id := uint(v)
	return &id, nil
}

// GetAttendance returns the marks recorded on session dates within [start, end]
func (ac *AttendanceController) GetAttendance(c *fiber.Ctx) error {
	studentIDs, err := utils.ParseIDList(c.Query("studentIds"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid studentIds: " + err.Error(),
		})
	}

	records, err := ac.svc.Fetch(c.UserContext(), attendance.FetchQuery{
		Subject:    c.Query("subject"),
		Start:      c.Query("start"),
		End:        c.Query("end"),
		StudentIDs: studentIDs,
	})
	if err != nil {
		return attendanceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"records": records,
	})
}

// UpdateAttendance reconciles a batch of marks
func (ac *AttendanceController) UpdateAttendance(c *fiber.Ctx) error {
	var req AttendanceUpdateRequest
	if ok, err := parseAndValidate(c, &req); !ok {
		return err
	}

	createdBy := ""
	if claims, err := middleware.GetCurrentClaims(c); err == nil {
		createdBy = strconv.FormatUint(uint64(claims.UserID), 10)
	}

	entries := make([]attendance.Entry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, attendance.Entry{
			StudentID: e.StudentID,
			Date:      e.Date,
			Present:   e.Present,
			Remarks:   e.Remarks,
		})
	}

	res, err := ac.svc.Submit(c.UserContext(), attendance.SubmitRequest{
		Subject:   req.Subject,
		GradeID:   req.GradeID,
		CreatedBy: createdBy,
		Entries:   entries,
	})
	if err != nil {
		return attendanceError(c, err)
	}
	return c.JSON(res)
}

// ExportAttendance streams the attendance workbook
func (ac *AttendanceController) ExportAttendance(c *fiber.Ctx) error {
	gradeID, err := optionalUintQuery(c, "gradeId")
	if err != nil {
		return attendanceError(c, err)
	}

	file, err := ac.exporter.Build(c.UserContext(), services.ExportRequest{
		Subject: c.Query("subject"),
		Start:   c.Query("start"),
		End:     c.Query("end"),
		GradeID: gradeID,
	})
	if err != nil {
		return attendanceError(c, err)
	}

	c.Set(fiber.HeaderContentType, services.XLSXContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, file.FileName))
	return c.Send(file.Content)
}

// ArchiveExport uploads the workbook to object storage
func (ac *AttendanceController) ArchiveExport(c *fiber.Ctx) error {
	var req ExportArchiveRequest
	if ok, err := parseAndValidate(c, &req); !ok {
		return err
	}

	var userID uint
	if user, err := middleware.GetCurrentUser(c); err == nil {
		userID = user.ID
	}

	row, err := ac.exporter.Archive(c.UserContext(), services.ExportRequest{
		Subject: req.Subject,
		Start:   req.Start,
		End:     req.End,
		GradeID: req.GradeID,
	}, userID)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "Export storage is not configured",
		})
	case err != nil && row != nil:
		logrus.WithError(err).WithField("s3_key", row.S3Key).Error("attendance export upload failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to upload export",
			"archive": row,
		})
	case err != nil:
		return attendanceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"archive": row,
	})
}
