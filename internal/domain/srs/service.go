package srs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/kotoba-api/internal/domain"
)

// Service defines the interface for SRS scheduling operations
type Service interface {
	// NextProgress computes the progress record that results from recording
	// one outcome. prev is nil for an item with no progress yet. The returned
	// record is always a new value; prev is never modified.
	NextProgress(
		prev *domain.ReviewProgress,
		userID, itemID uuid.UUID,
		wasCorrect bool,
		now time.Time,
	) *domain.ReviewProgress

	// IsDue reports whether an item with the given progress is due at now.
	IsDue(p *domain.ReviewProgress, now time.Time) bool
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new SRS service with default parameters
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new SRS service with custom parameters
func NewServiceWithParams(params *Params) (Service, error) {
	if params == nil {
		return nil, fmt.Errorf("srs params cannot be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid srs params: %w", err)
	}
	return &defaultService{
		params: params,
	}, nil
}

// NextProgress implements Service.NextProgress
func (s *defaultService) NextProgress(
	prev *domain.ReviewProgress,
	userID, itemID uuid.UUID,
	wasCorrect bool,
	now time.Time,
) *domain.ReviewProgress {
	return calculateNextProgress(prev, userID, itemID, wasCorrect, now, s.params)
}

// IsDue implements Service.IsDue
func (s *defaultService) IsDue(p *domain.ReviewProgress, now time.Time) bool {
	return IsProgressDue(p, now)
}
