package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/justsurfingit/jobtrackr/internal/apperrors"
	"github.com/justsurfingit/jobtrackr/internal/dtos"
	"github.com/justsurfingit/jobtrackr/internal/models"
)

type CalendarService struct {
	DB *gorm.DB
}

func NewCalendarService(db *gorm.DB) *CalendarService {
	return &CalendarService{DB: db}
}

func (s *CalendarService) validate(ctx context.Context, req *dtos.CalendarEventRequest) error {
	if req.EndTime != nil && req.EndTime.Before(req.StartTime) {
		return apperrors.NewValidationError("end_time must not be before start_time")
	}
	if req.JobID != nil {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.Job{}).Where("id = ?", *req.JobID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperrors.NewValidationError("job not found", fmt.Sprint(*req.JobID))
		}
	}
	return nil
}

func (s *CalendarService) Create(ctx context.Context, userID string, req *dtos.CalendarEventRequest) (*models.CalendarEvent, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	ev := &models.CalendarEvent{UserID: userID}
	applyEventRequest(ev, req)
	if err := s.DB.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return ev, nil
}

func applyEventRequest(ev *models.CalendarEvent, req *dtos.CalendarEventRequest) {
	ev.JobID = req.JobID
	ev.Title = req.Title
	ev.Description = req.Description
	ev.EventType = req.EventType
	if ev.EventType == "" {
		ev.EventType = models.EventOther
	}
	ev.StartTime = req.StartTime.UTC()
	ev.EndTime = nil
	if req.EndTime != nil {
		end := req.EndTime.UTC()
		ev.EndTime = &end
	}
	ev.Location = req.Location
	ev.AllDay = req.AllDay
	ev.ReminderMinutes = req.ReminderMinutes
}

// List returns the user's events starting in [from, to). Zero bounds are open.
func (s *CalendarService) List(ctx context.Context, userID string, from, to time.Time) ([]models.CalendarEvent, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if !from.IsZero() {
		q = q.Where("start_time >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("start_time < ?", to.UTC())
	}
	var out []models.CalendarEvent
	if err := q.Order("start_time ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return out, nil
}

func (s *CalendarService) Get(ctx context.Context, userID string, id uint) (*models.CalendarEvent, error) {
	var ev models.CalendarEvent
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&ev, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("event not found")
		}
		return nil, err
	}
	return &ev, nil
}

func (s *CalendarService) Update(ctx context.Context, userID string, id uint, req *dtos.CalendarEventRequest) (*models.CalendarEvent, error) {
	ev, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}
	applyEventRequest(ev, req)
	if err := s.DB.WithContext(ctx).Save(ev).Error; err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return ev, nil
}

func (s *CalendarService) Delete(ctx context.Context, userID string, id uint) error {
	ev, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Delete(ev).Error
}
