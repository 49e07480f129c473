package controllers

import (
	"errors"
	"strings"

	"remedial_go/models"
	"remedial_go/services/attendance"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RemedialController manages the remedial calendar: quarters and weekly schedules
type RemedialController struct {
	db  *gorm.DB
	svc *attendance.Service
}

func NewRemedialController(db *gorm.DB, svc *attendance.Service) *RemedialController {
	return &RemedialController{db: db, svc: svc}
}

func (rc *RemedialController) invalidate(c *fiber.Ctx) {
	rc.svc.Resolver().Invalidate(c.UserContext())
}

// GetWindow returns the resolved remedial window for a subject
func (rc *RemedialController) GetWindow(c *fiber.Ctx) error {
	w, err := rc.svc.Window(c.UserContext(), c.Query("subject"))
	if err != nil {
		return attendanceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "window": w})
}

// GetQuarters lists remedial quarters, optionally for one school year
func (rc *RemedialController) GetQuarters(c *fiber.Ctx) error {
	var quarters []models.RemedialQuarter
	q := rc.db.Order("school_year, start_month")
	if sy := c.Query("school_year"); sy != "" {
		q = q.Where("school_year = ?", sy)
	}
	if err := q.Find(&quarters).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch quarters"})
	}
	return c.JSON(fiber.Map{"success": true, "quarters": quarters})
}

func (rc *RemedialController) CreateQuarter(c *fiber.Ctx) error {
	var req QuarterRequest
	if ok, err := parseAndValidate(c, &req); !ok {
		return err
	}

	quarter := models.RemedialQuarter{
		SchoolYear: strings.TrimSpace(req.SchoolYear),
		Label:      strings.TrimSpace(req.Label),
		StartMonth: req.StartMonth,
		EndMonth:   req.EndMonth,
	}
	if err := rc.db.Create(&quarter).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create quarter"})
	}
	rc.invalidate(c)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "quarter": quarter})
}

func (rc *RemedialController) DeleteQuarter(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid quarter ID"})
	}

	res := rc.db.Delete(&models.RemedialQuarter{}, id)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete quarter"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Quarter not found"})
	}
	rc.invalidate(c)

	return c.JSON(fiber.Map{"success": true, "message": "Quarter deleted successfully"})
}

// GetWeeklySchedules lists the weekdays each subject meets
func (rc *RemedialController) GetWeeklySchedules(c *fiber.Ctx) error {
	var rows []models.WeeklySubjectSchedule
	if err := rc.db.Preload("Subject").Order("subject_id, id").Find(&rows).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch weekly schedules"})
	}
	return c.JSON(fiber.Map{"success": true, "weekly_schedules": rows})
}

func (rc *RemedialController) CreateWeeklySchedule(c *fiber.Ctx) error {
	var req WeeklyScheduleRequest
	if ok, err := parseAndValidate(c, &req); !ok {
		return err
	}

	var row models.WeeklySubjectSchedule
	var created bool
	err := rc.db.Transaction(func(tx *gorm.DB) error {
		var err error
		row, created, err = ensureWeeklySchedule(tx, req)
		return err
	})
	if err != nil {
		logrus.WithError(err).Error("create weekly schedule failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create weekly schedule"})
	}
	if !created {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Weekly schedule already exists", "weekly_schedule": row})
	}
	rc.invalidate(c)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "weekly_schedule": row})
}

func (rc *RemedialController) DeleteWeeklySchedule(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid weekly schedule ID"})
	}

	res := rc.db.Delete(&models.WeeklySubjectSchedule{}, id)
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete weekly schedule"})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Weekly schedule not found"})
	}
	rc.invalidate(c)

	return c.JSON(fiber.Map{"success": true, "message": "Weekly schedule deleted successfully"})
}

// findOrCreateSubject looks a canonical subject up case-insensitively
func findOrCreateSubject(tx *gorm.DB, canonical string) (models.Subject, error) {
	var subject models.Subject
	err := tx.Where("LOWER(name) = ?", strings.ToLower(canonical)).First(&subject).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		subject = models.Subject{Name: canonical}
		err = tx.Create(&subject).Error
	}
	return subject, err
}

// ensureWeeklySchedule creates the (subject, weekday) row unless it exists
func ensureWeeklySchedule(tx *gorm.DB, req WeeklyScheduleRequest) (models.WeeklySubjectSchedule, bool, error) {
	canonical, _ := attendance.NormalizeSubject(req.Subject)
	day, _ := attendance.CanonicalWeekday(req.DayOfWeek)

	subject, err := findOrCreateSubject(tx, canonical)
	if err != nil {
		return models.WeeklySubjectSchedule{}, false, err
	}

	var existing models.WeeklySubjectSchedule
	err = tx.Where("subject_id = ? AND LOWER(day_of_week) = ?", subject.ID, strings.ToLower(day)).First(&existing).Error
	if err == nil {
		existing.Subject = subject
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.WeeklySubjectSchedule{}, false, err
	}

	row := models.WeeklySubjectSchedule{SubjectID: subject.ID, DayOfWeek: day}
	if err := tx.Create(&row).Error; err != nil {
		return models.WeeklySubjectSchedule{}, false, err
	}
	row.Subject = subject
	return row, true, nil
}

// ensureQuarter creates the quarter unless an identical range exists for the school year
func ensureQuarter(tx *gorm.DB, req QuarterRequest) (bool, error) {
	var count int64
	err := tx.Model(&models.RemedialQuarter{}).
		Where("school_year = ? AND start_month = ? AND end_month = ?", req.SchoolYear, req.StartMonth, req.EndMonth).
		Count(&count).Error
	if err != nil || count > 0 {
		return false, err
	}
	q := models.RemedialQuarter{SchoolYear: req.SchoolYear, Label: req.Label, StartMonth: req.StartMonth, EndMonth: req.EndMonth}
	return true, tx.Create(&q).Error
}
