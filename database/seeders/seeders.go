package seeders

import (
	"log"
	"remedial_go/database"
	"remedial_go/models"
	"remedial_go/utils"

	"gorm.io/gorm"
)

// SeedAll runs all seeders against the global database handle
func SeedAll() {
	if err := Seed(database.DB, "2025-2026"); err != nil {
		log.Printf("Seeding finished with errors: %v", err)
		return
	}
	log.Println("Database seeding completed successfully!")
}

// Seed fills an empty database with a working remedial setup for schoolYear.
// Each table is skipped when it already holds rows.
func Seed(db *gorm.DB, schoolYear string) error {
	log.Println("Starting database seeding...")

	steps := []struct {
		name string
		fn   func(*gorm.DB, string) error
	}{
		{"users", seedUsers},
		{"grades", seedGrades},
		{"subjects", seedSubjects},
		{"students", seedStudents},
		{"remedial quarters", seedQuarters},
		{"weekly schedules", seedWeeklySchedules},
	}
	for _, s := range steps {
		if err := s.fn(db, schoolYear); err != nil {
			log.Printf("Error seeding %s: %v", s.name, err)
			return err
		}
	}
	return nil
}

func alreadySeeded(db *gorm.DB, model interface{}, name string) bool {
	var count int64
	db.Model(model).Count(&count)
	if count > 0 {
		log.Printf("%s already seeded, skipping...", name)
		return true
	}
	return false
}

func seedUsers(db *gorm.DB, _ string) error {
	if alreadySeeded(db, &models.User{}, "Users") {
		return nil
	}

	// Hash the default password
	hashedPassword, err := utils.HashPassword("password123")
	if err != nil {
		return err
	}

	users := []models.User{
		{BaseModel: models.BaseModel{ID: 1}, Username: "admin", Password: hashedPassword, Email: "admin@school.local", DisplayName: "School Admin", Role: models.RoleAdmin, Status: "active"},
		{BaseModel: models.BaseModel{ID: 2}, Username: "teacher_reyes", Password: hashedPassword, Email: "reyes@school.local", DisplayName: "Ms. Reyes", Role: models.RoleTeacher, Status: "active"},
		{BaseModel: models.BaseModel{ID: 3}, Username: "parent_cruz", Password: hashedPassword, Email: "cruz.family@gmail.com", DisplayName: "Mr. Cruz", Role: models.RoleParent, Status: "active"},
	}
	return db.Create(&users).Error
}

func seedGrades(db *gorm.DB, _ string) error {
	if alreadySeeded(db, &models.Grade{}, "Grades") {
		return nil
	}
	grades := []models.Grade{
		{BaseModel: models.BaseModel{ID: 1}, Name: "Grade 1", Level: 1},
		{BaseModel: models.BaseModel{ID: 2}, Name: "Grade 2", Level: 2},
		{BaseModel: models.BaseModel{ID: 3}, Name: "Grade 3", Level: 3},
	}
	return db.Create(&grades).Error
}

func seedSubjects(db *gorm.DB, _ string) error {
	if alreadySeeded(db, &models.Subject{}, "Subjects") {
		return nil
	}
	subjects := []models.Subject{
		{BaseModel: models.BaseModel{ID: 1}, Name: "Math"},
		{BaseModel: models.BaseModel{ID: 2}, Name: "English"},
		{BaseModel: models.BaseModel{ID: 3}, Name: "Filipino"},
	}
	return db.Create(&subjects).Error
}

func seedStudents(db *gorm.DB, _ string) error {
	if alreadySeeded(db, &models.Student{}, "Students") {
		return nil
	}
	grade := func(id uint) *uint { return &id }
	parent := uint(3)
	students := []models.Student{
		{Code: "S-0001", FirstName: "Juan", LastName: "Cruz", GradeID: grade(3), ParentUserID: &parent},
		{Code: "S-0002", FirstName: "Maria", LastName: "Santos", GradeID: grade(3)},
		{Code: "S-0003", FirstName: "Jose", LastName: "Garcia", GradeID: grade(3)},
		{Code: "S-0004", FirstName: "Ana", LastName: "Lopez", GradeID: grade(2)},
	}
	return db.Create(&students).Error
}

func seedQuarters(db *gorm.DB, schoolYear string) error {
	if alreadySeeded(db, &models.RemedialQuarter{}, "Remedial quarters") {
		return nil
	}
	quarters := []models.RemedialQuarter{
		{SchoolYear: schoolYear, Label: "Q1", StartMonth: 9, EndMonth: 10},
		{SchoolYear: schoolYear, Label: "Q3", StartMonth: 1, EndMonth: 2},
	}
	return db.Create(&quarters).Error
}

func seedWeeklySchedules(db *gorm.DB, _ string) error {
	if alreadySeeded(db, &models.WeeklySubjectSchedule{}, "Weekly schedules") {
		return nil
	}
	rows := []models.WeeklySubjectSchedule{
		{SubjectID: 1, DayOfWeek: "Monday"},
		{SubjectID: 1, DayOfWeek: "Wednesday"},
		{SubjectID: 2, DayOfWeek: "Tuesday"},
		{SubjectID: 3, DayOfWeek: "Thursday"},
	}
	return db.Create(&rows).Error
}
