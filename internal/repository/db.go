package repository

import (
	"context"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"gorm.io/gorm"
)

// TenantRepository defines the interface for tenant and business-hours lookups
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.Tenant, error)
	GetAll(ctx context.Context, includeDisabled bool) ([]*domain.Tenant, error)

	GetBusinessHours(ctx context.Context, tenantID string) ([]*domain.BusinessHours, error)
	ReplaceBusinessHours(ctx context.Context, tenantID string, hours []*domain.BusinessHours) error
}

// SessionRepository defines the interface for call session operations
type SessionRepository interface {
	Create(ctx context.Context, session *domain.CallSession) error
	GetByCallSid(ctx context.Context, callSid string) (*domain.CallSession, error)
	GetByID(ctx context.Context, id string) (*domain.CallSession, error)
	Update(ctx context.Context, session *domain.CallSession) error
	UpdateSummary(ctx context.Context, id, summary string) error
}

// TranscriptRepository defines the interface for the append-only transcript
type TranscriptRepository interface {
	Append(ctx context.Context, sessionID, speaker, text string, state domain.ConversationState) (*domain.ConversationTurn, error)
	List(ctx context.Context, sessionID string) ([]*domain.ConversationTurn, error)
}

// EventRepository defines the interface for the append-only call event log
type EventRepository interface {
	Append(ctx context.Context, event *domain.CallEvent) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.CallEvent, error)
}

// LeadRepository defines the interface for captured leads
type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Lead, error)
	CountBySessionID(ctx context.Context, sessionID string) (int64, error)
}

// FlowRepository defines the interface for tenant call flows
type FlowRepository interface {
	GetActive(ctx context.Context, tenantID string, flowType domain.FlowType) (*domain.Flow, error)
	GetByID(ctx context.Context, id string) (*domain.Flow, error)
	SaveActive(ctx context.Context, flow *domain.Flow) error
}

// KnowledgeRepository defines the interface for FAQ and knowledge-base content
type KnowledgeRepository interface {
	CreateFAQ(ctx context.Context, faq *domain.FAQ) error
	CreateEntry(ctx context.Context, entry *domain.KnowledgeEntry) error
	ListFAQs(ctx context.Context, tenantID string) ([]*domain.FAQ, error)
	ListEntries(ctx context.Context, tenantID string) ([]*domain.KnowledgeEntry, error)
}

// JobRepository defines the interface for the background job table
type JobRepository interface {
	// Enqueue inserts a job. A job whose dedupe key already exists is skipped and
	// reported as not inserted.
	Enqueue(ctx context.Context, job *domain.Job) (bool, error)
	ClaimNext(ctx context.Context, now time.Time, lease time.Duration) (*domain.Job, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, job *domain.Job, cause string, retryAt time.Time) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	CountByDedupeKey(ctx context.Context, dedupeKey string) (int64, error)
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	Tenant() TenantRepository
	Session() SessionRepository
	Transcript() TranscriptRepository
	Event() EventRepository
	Lead() LeadRepository
	Flow() FlowRepository
	Knowledge() KnowledgeRepository
	Job() JobRepository

	// Transaction support
	WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db             *gorm.DB
	tenantRepo     *GormTenantRepository
	sessionRepo    *GormSessionRepository
	transcriptRepo *GormTranscriptRepository
	eventRepo      *GormEventRepository
	leadRepo       *GormLeadRepository
	flowRepo       *GormFlowRepository
	knowledgeRepo  *GormKnowledgeRepository
	jobRepo        *GormJobRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:             db,
		tenantRepo:     NewGormTenantRepository(db),
		sessionRepo:    NewGormSessionRepository(db),
		transcriptRepo: NewGormTranscriptRepository(db),
		eventRepo:      NewGormEventRepository(db),
		leadRepo:       NewGormLeadRepository(db),
		flowRepo:       NewGormFlowRepository(db),
		knowledgeRepo:  NewGormKnowledgeRepository(db),
		jobRepo:        NewGormJobRepository(db),
	}
}

// Tenant returns the tenant repository
func (m *GormRepositoryManager) Tenant() TenantRepository {
	return m.tenantRepo
}

// Session returns the call session repository
func (m *GormRepositoryManager) Session() SessionRepository {
	return m.sessionRepo
}

// Transcript returns the transcript repository
func (m *GormRepositoryManager) Transcript() TranscriptRepository {
	return m.transcriptRepo
}

// Event returns the call event repository
func (m *GormRepositoryManager) Event() EventRepository {
	return m.eventRepo
}

// Lead returns the lead repository
func (m *GormRepositoryManager) Lead() LeadRepository {
	return m.leadRepo
}

// Flow returns the call flow repository
func (m *GormRepositoryManager) Flow() FlowRepository {
	return m.flowRepo
}

// Knowledge returns the FAQ / knowledge-base repository
func (m *GormRepositoryManager) Knowledge() KnowledgeRepository {
	return m.knowledgeRepo
}

// Job returns the job repository
func (m *GormRepositoryManager) Job() JobRepository {
	return m.jobRepo
}

// WithTx executes a function within a database transaction.
// Every repository handed to fn shares the transaction.
func (m *GormRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewGormRepositoryManager(tx))
	})
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
