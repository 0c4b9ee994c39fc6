package service

import (
	"context"
	"time"

	"evento/internal/models"
)

// Narrow views of the repositories, so services can be exercised with fakes.

type TenantLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Tenant, error)
}

type EventLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.User, error)
}

// Auditor records audit entries
type Auditor interface {
	Log(ctx context.Context, userID *int64, action, resource string, details string, args ...any)
}

// Counter counts the live rows of one resource kind for a tenant
type Counter interface {
	CountByTenant(ctx context.Context, tenantID int64) (int, error)
}

// ReviewerCounter counts approved reviewers for a tenant
type ReviewerCounter interface {
	CountApprovedByTenant(ctx context.Context, tenantID int64) (int, error)
}

type CheckinSource interface {
	ListWorkshops(ctx context.Context, eventID int64) ([]models.Workshop, error)
	ListByUserEvent(ctx context.Context, userID, eventID int64) ([]models.Checkin, error)
}

type CertificateStore interface {
	GetConfig(ctx context.Context, eventID int64) (*models.CertificateConfig, error)
	FindReleased(ctx context.Context, userID, eventID int64, tipo string) (*models.Certificate, error)
	Create(ctx context.Context, c *models.Certificate) error
	GetByCode(ctx context.Context, code string) (*models.Certificate, error)
}

type RegistrationStore interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByExternalReference(ctx context.Context, ref string) (*models.Registration, error)
	GetByUserEvent(ctx context.Context, userID, eventID int64) (*models.Registration, error)
	ListByEvent(ctx context.Context, eventID int64) ([]models.Registration, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status, paymentID string) error
}

type SubmissionSource interface {
	GetByID(ctx context.Context, id int64) (*models.Submission, error)
	ListDistributable(ctx context.Context, eventID int64) ([]models.Submission, error)
}

type AssignmentStore interface {
	GetByID(ctx context.Context, id int64) (*models.Assignment, error)
	ListByEvent(ctx context.Context, eventID int64) ([]models.Assignment, error)
	ActiveLoads(ctx context.Context, reviewerIDs []int64) (map[int64]int, error)
	SaveRun(ctx context.Context, assignments []models.Assignment, log *models.DistributionLog) ([]models.Assignment, error)
	Replace(ctx context.Context, old *models.Assignment, reviewerID int64, deadline time.Time) (*models.Assignment, error)
	ListLogs(ctx context.Context, eventID int64) ([]models.DistributionLog, error)
	ListDetailsByEvent(ctx context.Context, eventID int64) ([]models.AssignmentDetail, error)
}

type ReviewerPool interface {
	PoolForEvent(ctx context.Context, tenantID, eventID int64) ([]int64, error)
}

// Notifier sends best-effort emails
type Notifier interface {
	SendReviewAssignment(to, reviewerName, eventName string, titles []string, deadline time.Time) error
}
