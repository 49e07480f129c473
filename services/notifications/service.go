package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"remedial_go/config"
	"remedial_go/database"
	"remedial_go/models"
	"remedial_go/services/attendance"
	"remedial_go/utils"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Queue item structure stored in Redis
// Keep minimal to reduce payload size
// We allow batching many userIDs for same payload
// If Redis is down we fall back to a direct DB insert
type queuedNotification struct {
	UserIDs   []uint    `json:"user_ids"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Channels  []string  `json:"channels,omitempty"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const redisListKey = "notifications:queue"

// Service exposes notification creation with optional Redis queue
// If Redis disabled/unavailable, performs direct DB insert.
type Service struct {
	db       *gorm.DB
	redis    *redis.Client
	useRedis bool
	wsHub    WSHub      // WebSocket hub interface
	line     LinePusher // LINE push, nil when disabled
}

// WSHub interface for WebSocket broadcasting
type WSHub interface {
	BroadcastToUser(userID uint, message interface{})
}

// LinePusher sends a text message to a LINE user id
type LinePusher interface {
	PushText(to string, message string) error
}

// defaultHub allows services created in different parts of the app (e.g., schedulers)
// to automatically broadcast over the same WebSocket hub without manually wiring each instance.
var defaultHub WSHub

// SetDefaultWSHub sets the package-level default WebSocket hub used by new Service instances.
func SetDefaultWSHub(h WSHub) {
	defaultHub = h
}

func NewService() *Service {
	return &Service{
		db:       database.GetDB(),
		redis:    database.GetRedisClient(),
		useRedis: config.AppConfig != nil && config.AppConfig.UseRedisNotifications && database.GetRedisClient() != nil,
		wsHub:    defaultHub,
	}
}

// NewServiceWithDB builds a direct-insert service on db, mainly for tests and the CLI.
func NewServiceWithDB(db *gorm.DB, hub WSHub, line LinePusher) *Service {
	return &Service{db: db, wsHub: hub, line: line}
}

// SetWebSocketHub sets the WebSocket hub for real-time notifications
func (s *Service) SetWebSocketHub(hub WSHub) {
	s.wsHub = hub
}

// SetLinePusher enables LINE delivery to parents who linked their account
func (s *Service) SetLinePusher(p LinePusher) {
	s.line = p
}

// normalizeChannels keeps only allowed values and ensures default channel
func normalizeChannels(in []string) []string {
	if len(in) == 0 {
		return []string{"normal"}
	}
	allowed := map[string]struct{}{"normal": {}, "popup": {}, "line": {}}
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, ch := range in {
		if _, ok := allowed[ch]; ok {
			if _, dup := seen[ch]; !dup {
				out = append(out, ch)
				seen[ch] = struct{}{}
			}
		}
	}
	if len(out) == 0 {
		out = []string{"normal"}
	}
	return out
}

// QueuedWithData builds a notification payload with a structured data attachment
func QueuedWithData(title, message, typ string, data any, channels ...string) queuedNotification {
	ch := normalizeChannels(channels)
	return queuedNotification{Title: title, Message: message, Type: typ, Channels: ch, Data: data}
}

// EnqueueOrCreate stores notifications using Redis queue if enabled, else direct insert.
func (s *Service) EnqueueOrCreate(userIDs []uint, n queuedNotification) error {
	if len(userIDs) == 0 {
		return errors.New("no user ids")
	}
	n.UserIDs = userIDs
	n.CreatedAt = time.Now().UTC()

	if s.useRedis {
		b, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if err = s.redis.RPush(context.Background(), redisListKey, b).Err(); err == nil {
			return nil // queued successfully
		}
		log.Printf("[notif] Redis queue failed, falling back to direct insert: %v", err)
	}

	// fallback: direct db insert
	return s.createDirect(userIDs, n)
}

// createDirect writes directly to DB (used by worker or fallback).
func (s *Service) createDirect(userIDs []uint, n queuedNotification) error {
	if len(userIDs) == 0 {
		return nil
	}
	// Always set channels JSON; MySQL forbids defaults on JSON columns
	channelsJSON, err := json.Marshal(normalizeChannels(n.Channels))
	if err != nil {
		channelsJSON = []byte(`["normal"]`)
	}
	var dataJSON []byte
	if n.Data != nil {
		if b, err2 := json.Marshal(n.Data); err2 == nil {
			dataJSON = b
		}
	}

	notifs := make([]models.Notification, 0, len(userIDs))
	for _, uid := range userIDs {
		notifs = append(notifs, models.Notification{
			UserID:   uid,
			Title:    n.Title,
			Message:  n.Message,
			Type:     n.Type,
			Read:     false,
			Channels: channelsJSON,
			Data:     dataJSON,
		})
	}

	if err := s.db.Create(&notifs).Error; err != nil {
		return err
	}

	if s.wsHub != nil {
		for _, notif := range notifs {
			s.wsHub.BroadcastToUser(notif.UserID, map[string]interface{}{
				"type": "notification",
				"data": utils.ToNotificationDTO(notif),
			})
		}
	}
	return nil
}

type absenceData struct {
	Kind      string `json:"kind"`
	StudentID uint   `json:"student_id"`
	Subject   string `json:"subject"`
	Date      string `json:"date"`
	SessionID uint   `json:"session_id"`
}

// NotifyAbsences delivers committed absences to each student's parent:
// an in-app notification (pushed over the websocket hub) and, when the
// parent linked LINE, a LINE text message.
func (s *Service) NotifyAbsences(ctx context.Context, absences []attendance.Absence) error {
	if len(absences) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(absences))
	seen := make(map[uint]bool, len(absences))
	for _, a := range absences {
		if !seen[a.StudentID] {
			seen[a.StudentID] = true
			ids = append(ids, a.StudentID)
		}
	}

	var students []models.Student
	if err := s.db.WithContext(ctx).Preload("Parent").Where("id IN ?", ids).Find(&students).Error; err != nil {
		return fmt.Errorf("load students: %w", err)
	}
	byID := make(map[uint]models.Student, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}

	var errs []error
	for _, a := range absences {
		st, ok := byID[a.StudentID]
		if !ok || st.ParentUserID == nil {
			continue
		}

		channels := []string{"normal", "popup"}
		lineID := ""
		if st.Parent != nil && st.Parent.LineUserID != "" {
			lineID = st.Parent.LineUserID
			channels = append(channels, "line")
		}

		payload := QueuedWithData(
			fmt.Sprintf("%s absence: %s", a.Subject, st.FullName()),
			a.Message,
			"warning",
			absenceData{Kind: "remedial_absence", StudentID: a.StudentID, Subject: a.Subject, Date: a.Date.String(), SessionID: a.SessionID},
			channels...,
		)
		if err := s.EnqueueOrCreate([]uint{*st.ParentUserID}, payload); err != nil {
			errs = append(errs, fmt.Errorf("notify parent of student %d: %w", a.StudentID, err))
		}

		if lineID != "" && s.line != nil {
			if err := s.line.PushText(lineID, st.FullName()+": "+a.Message); err != nil {
				errs = append(errs, fmt.Errorf("line push for student %d: %w", a.StudentID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// NotifyRoles sends one notification to every active user holding any of roles.
func (s *Service) NotifyRoles(ctx context.Context, roles []string, n queuedNotification) error {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("role IN ? AND status = ?", roles, "active").
		Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.EnqueueOrCreate(ids, n)
}

// StartWorker starts a background worker polling Redis queue and flushing to DB
func (s *Service) StartWorker(stop <-chan struct{}) {
	if !s.useRedis {
		log.Println("[notif] Redis notifications disabled; worker not started")
		return
	}
	go func() {
		log.Println("[notif] Redis notification worker started")
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		ctx := context.Background()
		batchSize := 200
		for {
			select {
			case <-stop:
				log.Println("[notif] Worker stopping")
				return
			case <-ticker.C:
				s.flushBatch(ctx, batchSize)
			}
		}
	}()
}

// flushBatch polls redis queue and processes notifications in batches.
func (s *Service) flushBatch(ctx context.Context, batchSize int) {
	if s.redis == nil {
		return
	}
	// LRange + LTrim keeps this safe for moderate concurrency
	for i := 0; i < 5; i++ { // up to 5 sub-batches per tick
		vals, err := s.redis.LRange(ctx, redisListKey, 0, int64(batchSize-1)).Result()
		if err != nil || len(vals) == 0 {
			return
		}
		if err = s.redis.LTrim(ctx, redisListKey, int64(len(vals)), -1).Err(); err != nil {
			log.Printf("[notif] LTrim failed: %v", err)
		}
		for _, raw := range vals {
			var q queuedNotification
			if err := json.Unmarshal([]byte(raw), &q); err != nil {
				continue
			}
			if err := s.createDirect(q.UserIDs, q); err != nil {
				log.Printf("[notif] DB insert failed: %v", err)
			}
		}
		if len(vals) < batchSize {
			return
		}
	}
}
