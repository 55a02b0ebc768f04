package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTranscriptRepository implements TranscriptRepository using GORM
type GormTranscriptRepository struct {
	db *gorm.DB
}

// NewGormTranscriptRepository creates a new GORM transcript repository
func NewGormTranscriptRepository(db *gorm.DB) *GormTranscriptRepository {
	return &GormTranscriptRepository{db: db}
}

// Append adds a turn at the next sequence number of the session.
// The (session_id, sequence) unique index rejects a concurrent duplicate append.
func (r *GormTranscriptRepository) Append(ctx context.Context, sessionID, speaker, text string, state domain.ConversationState) (*domain.ConversationTurn, error) {
	var last struct{ Max int }
	if err := r.db.WithContext(ctx).Model(&domain.ConversationTurn{}).
		Select("COALESCE(MAX(sequence), 0) AS max").
		Where("session_id = ?", sessionID).
		Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("failed to read transcript position: %w", err)
	}

	turn := &domain.ConversationTurn{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Sequence:  last.Max + 1,
		Speaker:   speaker,
		Text:      text,
		State:     state,
		Timestamp: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(turn).Error; err != nil {
		return nil, fmt.Errorf("failed to append transcript turn: %w", err)
	}
	return turn, nil
}

// List returns the transcript of a session in sequence order
func (r *GormTranscriptRepository) List(ctx context.Context, sessionID string) ([]*domain.ConversationTurn, error) {
	var turns []*domain.ConversationTurn
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sequence ASC").
		Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("failed to list transcript: %w", err)
	}
	return turns, nil
}

// GormEventRepository implements EventRepository using GORM
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a new GORM call event repository
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// Append writes an audit event
func (r *GormEventRepository) Append(ctx context.Context, event *domain.CallEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append call event: %w", err)
	}
	return nil
}

// ListBySession returns the events of a session oldest first
func (r *GormEventRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.CallEvent, error) {
	var events []*domain.CallEvent
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list call events: %w", err)
	}
	return events, nil
}
