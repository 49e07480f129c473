package utils

import (
	"encoding/json"
	"time"

	"remedial_go/models"
)

type Sender struct {
	Type string `json:"type"` // "system" or "user"
	ID   *uint  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Recipient struct {
	Type string `json:"type"` // "user", "role", etc.
	ID   uint   `json:"id"`
}

type NotificationDTO struct {
	ID        uint        `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	UserID    uint        `json:"user_id"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Type      string      `json:"type"`
	Channels  []string    `json:"channels"`
	Data      interface{} `json:"data,omitempty"`
	Read      bool        `json:"read"`
	ReadAt    *time.Time  `json:"read_at,omitempty"`
	Sender    Sender      `json:"sender"`
	Recipient Recipient   `json:"recipient"`
}

// ToNotificationDTO maps a models.Notification to the compact DTO pushed over websockets.
func ToNotificationDTO(n models.Notification) NotificationDTO {
	channels := []string{"normal"}
	if !n.Channels.IsNull() {
		var parsed []string
		if err := json.Unmarshal(n.Channels, &parsed); err == nil && len(parsed) > 0 {
			channels = parsed
		}
	}

	var data interface{}
	if !n.Data.IsNull() {
		_ = json.Unmarshal(n.Data, &data)
	}

	return NotificationDTO{
		ID:        n.ID,
		CreatedAt: n.CreatedAt,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Channels:  channels,
		Data:      data,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
		Sender:    Sender{Type: "system", Name: "Remedial Attendance"},
		Recipient: Recipient{Type: "user", ID: n.UserID},
	}
}

// ParentNotificationDTO is what a parent sees for one absence.
type ParentNotificationDTO struct {
	ID          uint       `json:"id"`
	StudentID   uint       `json:"student_id"`
	StudentName string     `json:"student_name"`
	Subject     string     `json:"subject"`
	Date        string     `json:"date"`
	Message     string     `json:"message"`
	Status      string     `json:"status"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ToParentNotificationDTO expects Student to be preloaded when a name is wanted.
func ToParentNotificationDTO(n models.ParentNotification) ParentNotificationDTO {
	return ParentNotificationDTO{
		ID:          n.ID,
		StudentID:   n.StudentID,
		StudentName: n.Student.FullName(),
		Subject:     n.Subject,
		Date:        n.Date.String(),
		Message:     n.Message,
		Status:      n.Status,
		ReadAt:      n.ReadAt,
		UpdatedAt:   n.UpdatedAt,
	}
}
