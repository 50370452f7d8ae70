package model

import (
	"fmt"
	"strings"
	"time"

	"activity-engine/internal/domain"

	"github.com/google/uuid"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	MaxPhotos = 5
)

// Activity is the canonical record of a capacity-bounded group activity.
type Activity struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Location     string    `json:"location"`
	Date         time.Time `json:"date"`
	StartTime    string    `json:"startTime"`
	EndTime      string    `json:"endTime,omitempty"`
	Price        int64     `json:"price"` // major currency units, 0 means free
	Currency     string    `json:"currency"`
	MaxCapacity  int       `json:"maxCapacity"`
	Participants []string  `json:"participants"`
	CreatedBy    string    `json:"createdBy"`
	Photos       []string  `json:"photos"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ActivityFields are the client-supplied descriptive fields of a new activity.
type ActivityFields struct {
	Title       string `json:"title" validate:"required,min=3,max=120"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"required,max=50"`
	Location    string `json:"location" validate:"required,max=200"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime     string `json:"endTime" validate:"omitempty,datetime=15:04"`
	Price       int64  `json:"price" validate:"gte=0"`
	Currency    string `json:"currency" validate:"omitempty,len=3,alpha"`
	MaxCapacity int    `json:"maxCapacity" validate:"required,gte=1,lte=1000"`
}

// ActivityPatch is a partial update; nil fields are left untouched.
type ActivityPatch struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=120"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Category    *string `json:"category" validate:"omitempty,max=50"`
	Location    *string `json:"location" validate:"omitempty,max=200"`
	Date        *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime   *string `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime     *string `json:"endTime" validate:"omitempty,datetime=15:04"`
	Price       *int64  `json:"price" validate:"omitempty,gte=0"`
	MaxCapacity *int    `json:"maxCapacity" validate:"omitempty,gte=1,lte=1000"`
}

// NewActivity builds an activity owned by ownerID. The owner is its first participant.
func NewActivity(id, ownerID string, f ActivityFields, photos []string, defaultCurrency string) (*Activity, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if ownerID == "" || f.MaxCapacity < 1 || f.Price < 0 || len(photos) > MaxPhotos {
		return nil, domain.ErrInvalidArgument
	}
	date, err := time.Parse(DateLayout, f.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date", domain.ErrInvalidArgument)
	}
	if err := checkTimes(f.StartTime, f.EndTime); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(f.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if photos == nil {
		photos = []string{}
	}
	now := time.Now()
	return &Activity{
		ID:           id,
		Title:        strings.TrimSpace(f.Title),
		Description:  strings.TrimSpace(f.Description),
		Category:     strings.TrimSpace(f.Category),
		Location:     strings.TrimSpace(f.Location),
		Date:         date,
		StartTime:    f.StartTime,
		EndTime:      f.EndTime,
		Price:        f.Price,
		Currency:     currency,
		MaxCapacity:  f.MaxCapacity,
		Participants: []string{ownerID},
		CreatedBy:    ownerID,
		Photos:       photos,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func checkTimes(start, end string) error {
	s, err := time.Parse(TimeLayout, start)
	if err != nil {
		return fmt.Errorf("%w: startTime", domain.ErrInvalidArgument)
	}
	if end == "" {
		return nil
	}
	e, err := time.Parse(TimeLayout, end)
	if err != nil {
		return fmt.Errorf("%w: endTime", domain.ErrInvalidArgument)
	}
	if !e.After(s) {
		return fmt.Errorf("%w: endTime must be after startTime", domain.ErrInvalidArgument)
	}
	return nil
}

// Apply copies the set fields of p onto a. Capacity can not drop below the current roster.
func (a *Activity) Apply(p ActivityPatch) error {
	next := *a
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		next.Category = strings.TrimSpace(*p.Category)
	}
	if p.Location != nil {
		next.Location = strings.TrimSpace(*p.Location)
	}
	if p.Date != nil {
		d, err := time.Parse(DateLayout, *p.Date)
		if err != nil {
			return fmt.Errorf("%w: date", domain.ErrInvalidArgument)
		}
		next.Date = d
	}
	if p.StartTime != nil {
		next.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		next.EndTime = *p.EndTime
	}
	if p.Price != nil {
		next.Price = *p.Price
	}
	if p.MaxCapacity != nil {
		if *p.MaxCapacity < len(a.Participants) {
			return fmt.Errorf("%w: maxCapacity below current participant count", domain.ErrInvalidArgument)
		}
		next.MaxCapacity = *p.MaxCapacity
	}
	if err := checkTimes(next.StartTime, next.EndTime); err != nil {
		return err
	}
	next.UpdatedAt = time.Now()
	*a = next
	return nil
}

func (a *Activity) IsPriced() bool { return a.Price > 0 }
func (a *Activity) IsFull() bool   { return len(a.Participants) >= a.MaxCapacity }

func (a *Activity) HasParticipant(userID string) bool {
	for _, id := range a.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// ActivityFilter selects a page of upcoming activities.
type ActivityFilter struct {
	From     time.Time // activities dated on or after this day
	Category string
	Page     int
	Limit    int
}

// ActivityPage is one page of a listing.
type ActivityPage struct {
	Items   []*Activity `json:"items"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	Total   int         `json:"total"`
	HasMore bool        `json:"hasMore"`
}

// NewActivityPage computes hasMore from the page bounds.
func NewActivityPage(items []*Activity, page, limit, total int) *ActivityPage {
	if items == nil {
		items = []*Activity{}
	}
	return &ActivityPage{
		Items:   items,
		Page:    page,
		Limit:   limit,
		Total:   total,
		HasMore: page*limit < total,
	}
}
