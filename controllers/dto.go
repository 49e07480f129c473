package controllers

import (
	"errors"
	"reflect"
	"strings"

	"remedial_go/config"
	"remedial_go/services/attendance"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names in field errors
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("school_year", func(fl validator.FieldLevel) bool {
		return config.ValidSchoolYear(fl.Field().String())
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, ok := attendance.CanonicalWeekday(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("subject", func(fl validator.FieldLevel) bool {
		_, ok := attendance.NormalizeSubject(fl.Field().String())
		return ok
	})
	return v
}

// AttendanceEntryRequest is one mark in a PUT /api/attendance body
type AttendanceEntryRequest struct {
	StudentID uint    `json:"studentId" validate:"required"`
	Date      string  `json:"date" validate:"required"`
	Present   *string `json:"present"`
	Remarks   *string `json:"remarks" validate:"omitempty,max=1000"`
}

type AttendanceUpdateRequest struct {
	Subject string                   `json:"subject" validate:"required"`
	GradeID *uint                    `json:"gradeId"`
	Entries []AttendanceEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

type ExportArchiveRequest struct {
	Subject string `json:"subject" validate:"required,subject"`
	Start   string `json:"start" validate:"required"`
	End     string `json:"end" validate:"required"`
	GradeID *uint  `json:"gradeId"`
}

type QuarterRequest struct {
	SchoolYear string `json:"school_year" validate:"required,school_year"`
	Label      string `json:"label" validate:"max=50"`
	StartMonth int    `json:"start_month" validate:"required,min=1,max=12"`
	EndMonth   int    `json:"end_month" validate:"required,min=1,max=12,gtefield=StartMonth"`
}

type WeeklyScheduleRequest struct {
	Subject   string `json:"subject" validate:"required,subject"`
	DayOfWeek string `json:"day_of_week" validate:"required,weekday"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// validationErrors renders validator errors per field
func validationErrors(err error) map[string]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"body": err.Error()}
	}
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		// drop the root struct name: "entries[0].studentId"
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		out[key] = fe.Tag()
	}
	return out
}

// parseAndValidate binds the JSON body into req and validates it.
// On failure the 400 response is already written and ok is false.
func parseAndValidate(c *fiber.Ctx, req interface{}) (ok bool, err error) {
	if err := c.BodyParser(req); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Validation failed",
			"fields":  validationErrors(err),
		})
	}
	return true, nil
}
