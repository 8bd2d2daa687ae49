package attendance

import (
	"context"
	"fmt"
	"time"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/metrics"

	"github.com/google/uuid"
)

// Domain event types handed to the EventPublisher after commit.
const (
	EventImported          = "event.imported"
	AttendanceRecorded     = "attendance.recorded"
	ParticipantBlocklisted = "participant.blocklisted"
)

type Service struct {
	store     Store
	locker    EventLocker
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
	now       Clock
	newID     func() string
}

type Option func(*Service)

// WithLocker enables per-event serialisation of attendance uploads.
func WithLocker(l EventLocker) Option {
	return func(s *Service) { s.locker = l }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(c Clock) Option {
	return func(s *Service) { s.now = c }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func NewAttendanceService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// publish is best effort: the workflow has already committed.
func (s *Service) publish(ctx context.Context, eventType, key string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, key, payload); err != nil {
		s.logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s for %s: %v", eventType, key, err))
	}
}
