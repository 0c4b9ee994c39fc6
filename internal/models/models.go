package models

import (
	"encoding/json"
	"time"
)

// User types
const (
	UserTypeAdmin       = "admin"
	UserTypeClient      = "cliente"
	UserTypeParticipant = "participante"
)

// Tenant is a client organisation that owns events, forms and reviewer processes
type Tenant struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// User represents a user in the system
type User struct {
	ID           int64      `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Name         string     `json:"name" db:"name"`
	CPF          string     `json:"cpf,omitempty" db:"cpf"`
	Tipo         string     `json:"tipo" db:"tipo"`
	TenantID     *int64     `json:"tenant_id,omitempty" db:"tenant_id"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the user is a platform administrator
func (u *User) IsAdmin() bool { return u.Tipo == UserTypeAdmin }

// OwnsTenant reports whether the user is the client account of tenantID
func (u *User) OwnsTenant(tenantID int64) bool {
	return u.Tipo == UserTypeClient && u.TenantID != nil && *u.TenantID == tenantID
}

// Review models
const (
	ReviewModelSingleBlind = "single_blind"
	ReviewModelDoubleBlind = "double_blind"
)

// TenantConfig is the configuration row of one scope. EventID is nil for the
// tenant scope; an event scope row overrides the tenant values for that event.
type TenantConfig struct {
	ID       int64  `json:"id" db:"id"`
	TenantID int64  `json:"tenant_id" db:"tenant_id"`
	EventID  *int64 `json:"evento_id,omitempty" db:"event_id"`

	LimiteEventos     int `json:"limite_eventos" db:"limite_eventos"`
	LimiteInscritos   int `json:"limite_inscritos" db:"limite_inscritos"`
	LimiteFormularios int `json:"limite_formularios" db:"limite_formularios"`
	LimiteRevisores   int `json:"limite_revisores" db:"limite_revisores"`

	ModeloRevisao          string `json:"modelo_revisao" db:"modelo_revisao"`
	MaxTrabalhosPorRevisor int    `json:"max_trabalhos_por_revisor" db:"max_trabalhos_por_revisor"`
	NumRevisoresMin        int    `json:"num_revisores_min" db:"num_revisores_min"`
	NumRevisoresMax        int    `json:"num_revisores_max" db:"num_revisores_max"`
	PrazoRevisaoDias       int    `json:"prazo_revisao_dias" db:"prazo_revisao_dias"`

	CheckinGlobal                  bool `json:"checkin_global" db:"checkin_global"`
	HabilitarFeedback              bool `json:"habilitar_feedback" db:"habilitar_feedback"`
	HabilitarCertificadoIndividual bool `json:"habilitar_certificado_individual" db:"habilitar_certificado_individual"`
	HabilitarQRCodeCredenciamento  bool `json:"habilitar_qrcode_credenciamento" db:"habilitar_qrcode_credenciamento"`
	HabilitarSubmissaoTrabalhos    bool `json:"habilitar_submissao_trabalhos" db:"habilitar_submissao_trabalhos"`
	MostrarTaxa                    bool `json:"mostrar_taxa" db:"mostrar_taxa"`

	ObrigatorioNome        bool `json:"obrigatorio_nome" db:"obrigatorio_nome"`
	ObrigatorioCPF         bool `json:"obrigatorio_cpf" db:"obrigatorio_cpf"`
	ObrigatorioEmail       bool `json:"obrigatorio_email" db:"obrigatorio_email"`
	ObrigatorioTelefone    bool `json:"obrigatorio_telefone" db:"obrigatorio_telefone"`
	ObrigatorioInstituicao bool `json:"obrigatorio_instituicao" db:"obrigatorio_instituicao"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Event belongs to exactly one tenant
type Event struct {
	ID              int64      `json:"id" db:"id"`
	TenantID        int64      `json:"tenant_id" db:"tenant_id"`
	Name            string     `json:"name" db:"name"`
	Description     string     `json:"description" db:"description"`
	StartsAt        *time.Time `json:"starts_at,omitempty" db:"starts_at"`
	EndsAt          *time.Time `json:"ends_at,omitempty" db:"ends_at"`
	SubmissionsOpen bool       `json:"submissions_open" db:"submissions_open"`
	ValorInscricao  int64      `json:"valor_inscricao" db:"valor_inscricao"` // cents
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IsPaid reports whether registering for the event requires a payment
func (e *Event) IsPaid() bool { return e.ValorInscricao > 0 }

// Form is a tenant-owned form definition
type Form struct {
	ID          int64     `json:"id" db:"id"`
	TenantID    int64     `json:"tenant_id" db:"tenant_id"`
	EventID     *int64    `json:"event_id,omitempty" db:"event_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Workshop is a sub-session of an event
type Workshop struct {
	ID        int64     `json:"id" db:"id"`
	EventID   int64     `json:"event_id" db:"event_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Payment statuses of a registration
const (
	PaymentStatusFree     = "free"
	PaymentStatusPending  = "pending"
	PaymentStatusApproved = "approved"
	PaymentStatusRejected = "rejected"
)

// Registration is a user's enrolment in an event
type Registration struct {
	ID                int64     `json:"id" db:"id"`
	EventID           int64     `json:"event_id" db:"event_id"`
	UserID            int64     `json:"user_id" db:"user_id"`
	Name              string    `json:"name" db:"name"`
	CPF               string    `json:"cpf" db:"cpf"`
	Email             string    `json:"email" db:"email"`
	Phone             string    `json:"phone" db:"phone"`
	Institution       string    `json:"institution" db:"institution"`
	PaymentStatus     string    `json:"payment_status" db:"payment_status"`
	ExternalReference *string   `json:"external_reference,omitempty" db:"external_reference"`
	PaymentID         *string   `json:"payment_id,omitempty" db:"payment_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Confirmed reports whether the registration is free or paid
func (r *Registration) Confirmed() bool {
	return r.PaymentStatus == PaymentStatusFree || r.PaymentStatus == PaymentStatusApproved
}

// ReviewerProcess is a call for reviewers. An empty EventIDs list covers every
// event of the tenant.
type ReviewerProcess struct {
	ID        int64     `json:"id" db:"id"`
	TenantID  int64     `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	EventIDs  []int64   `json:"event_ids" db:"event_ids"`
	IsOpen    bool      `json:"is_open" db:"is_open"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Candidature statuses
const (
	CandidatureStatusPending  = "pending"
	CandidatureStatusApproved = "approved"
	CandidatureStatusRejected = "rejected"
)

// ReviewerCandidature is a user's application to a reviewer process
type ReviewerCandidature struct {
	ID        int64      `json:"id" db:"id"`
	ProcessID int64      `json:"process_id" db:"process_id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	Status    string     `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty" db:"decided_at"`
}

// Submission statuses
const (
	SubmissionStatusSubmitted   = "submitted"
	SubmissionStatusUnderReview = "under_review"
	SubmissionStatusAccepted    = "accepted"
	SubmissionStatusRejected    = "rejected"
)

// Submission is a work submitted to an event by its author
type Submission struct {
	ID        int64     `json:"id" db:"id"`
	EventID   int64     `json:"event_id" db:"event_id"`
	AuthorID  int64     `json:"author_id" db:"author_id"`
	Title     string    `json:"title" db:"title"`
	Abstract  string    `json:"abstract" db:"abstract"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Assignment links a submission to a reviewer. The reviewer is never the author.
type Assignment struct {
	ID             int64      `json:"id" db:"id"`
	SubmissionID   int64      `json:"submission_id" db:"submission_id"`
	ReviewerID     int64      `json:"reviewer_id" db:"reviewer_id"`
	Deadline       time.Time  `json:"deadline" db:"deadline"`
	Completed      bool       `json:"completed" db:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	IsReevaluation bool       `json:"is_reevaluation" db:"is_reevaluation"`
	Recommendation *string    `json:"recommendation,omitempty" db:"recommendation"`
	Comments       string     `json:"comments" db:"comments"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// AssignmentDetail is an assignment joined with its submission and reviewer
type AssignmentDetail struct {
	Assignment
	EventID       int64  `json:"event_id"`
	Title         string `json:"title"`
	AuthorID      int64  `json:"author_id,omitempty"`
	ReviewerName  string `json:"reviewer_name"`
	ReviewerEmail string `json:"reviewer_email"`
}

// DistributionLog is the immutable record of one distribution run
type DistributionLog struct {
	ID                  int64           `json:"id" db:"id"`
	RunID               string          `json:"run_id" db:"run_id"`
	EventID             int64           `json:"event_id" db:"event_id"`
	ActorID             *int64          `json:"actor_id,omitempty" db:"actor_id"`
	TotalSubmissions    int             `json:"total_submissions" db:"total_submissions"`
	TotalAssignments    int             `json:"total_assignments" db:"total_assignments"`
	ConflictsDetected   int             `json:"conflicts_detected" db:"conflicts_detected"`
	FallbackAssignments int             `json:"fallback_assignments" db:"fallback_assignments"`
	FailedAssignments   int             `json:"failed_assignments" db:"failed_assignments"`
	StartedAt           time.Time       `json:"started_at" db:"started_at"`
	FinishedAt          time.Time       `json:"finished_at" db:"finished_at"`
	DurationMS          int64           `json:"duration_ms" db:"duration_ms"`
	Detail              json.RawMessage `json:"detail" db:"detail"`
}

// Checkin records a user's presence at an event, optionally at one workshop
type Checkin struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	EventID    int64     `json:"event_id" db:"event_id"`
	WorkshopID *int64    `json:"workshop_id,omitempty" db:"workshop_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// CertificateConfig holds the eligibility rules of an event
type CertificateConfig struct {
	ID                   int64     `json:"id" db:"id"`
	EventID              int64     `json:"event_id" db:"event_id"`
	MinCheckins          int       `json:"min_checkins" db:"min_checkins"`
	RequiredWorkshopIDs  []int64   `json:"required_workshop_ids" db:"required_workshop_ids"`
	MinAttendancePercent float64   `json:"min_attendance_percent" db:"min_attendance_percent"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// Certificate types
const (
	CertificateTypeParticipant = "participante"
	CertificateTypeIndividual  = "individual"
)

// Certificate is an issued certificate of participation
type Certificate struct {
	ID               int64     `json:"id" db:"id"`
	UserID           int64     `json:"user_id" db:"user_id"`
	EventID          int64     `json:"event_id" db:"event_id"`
	Tipo             string    `json:"tipo" db:"tipo"`
	Liberado         bool      `json:"liberado" db:"liberado"`
	VerificationCode string    `json:"verification_code" db:"verification_code"`
	IssuedAt         time.Time `json:"issued_at" db:"issued_at"`
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        int64     `json:"id" db:"id"`
	UserID    *int64    `json:"user_id,omitempty" db:"user_id"`
	Action    string    `json:"action" db:"action"`
	Resource  string    `json:"resource" db:"resource"`
	Details   string    `json:"details,omitempty" db:"details"`
	IPAddress string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
