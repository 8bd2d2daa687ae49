// Package volunteers keeps the roster of people helping run events.
package volunteers

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ms-attendance/internal/domain"
	"ms-attendance/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var phonePattern = regexp.MustCompile(`^[0-9+()\-\s]{6,20}$`)

var joinedAtLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

type Service struct {
	db    *DB
	now   func() time.Time
	newID func() string
}

func NewService(db *bun.DB) *Service {
	return &Service{
		db:    NewDB(db),
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

type CreateRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
	JoinedAt    string `json:"joinedAt"`
	Comments    string `json:"comments"`
}

func (s *Service) List(ctx context.Context) ([]models.Volunteer, error) {
	volunteers, err := s.db.List(ctx)
	if err != nil {
		return nil, domain.Store("list volunteers", err)
	}
	if volunteers == nil {
		volunteers = []models.Volunteer{}
	}
	return volunteers, nil
}

// Create trims every field, lowercases the email and defaults joinedAt to now.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Volunteer, error) {
	now := s.now()
	v := &models.Volunteer{
		ID:          s.newID(),
		Name:        strings.TrimSpace(req.Name),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Comments:    strings.TrimSpace(req.Comments),
		JoinedAt:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var problems []string
	if v.Name == "" {
		problems = append(problems, "name: Name is required")
	}
	if v.PhoneNumber != "" && !phonePattern.MatchString(v.PhoneNumber) {
		problems = append(problems, "phoneNumber: Phone number is invalid")
	}
	if joined := strings.TrimSpace(req.JoinedAt); joined != "" {
		at, err := parseJoinedAt(joined)
		if err != nil {
			problems = append(problems, "joinedAt: Joined date is invalid")
		}
		v.JoinedAt = at
	}
	if len(problems) > 0 {
		return nil, domain.Validation("Validation failed: %s", strings.Join(problems, ", "))
	}

	if err := s.db.Create(ctx, v); err != nil {
		return nil, domain.Store("create volunteer", err)
	}
	return v, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Validation("Missing volunteer id")
	}
	deleted, err := s.db.Delete(ctx, id)
	if err != nil {
		return domain.Store("delete volunteer", err)
	}
	if !deleted {
		return domain.NotFound("Volunteer not found")
	}
	return nil
}

func parseJoinedAt(value string) (time.Time, error) {
	for _, layout := range joinedAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}
