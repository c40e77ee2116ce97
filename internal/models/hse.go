package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskOverdue    TaskStatus = "overdue"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskOverdue:
		return true
	}
	return false
}

type Task struct {
	ID           uuid.UUID    `json:"id"`
	CompanyID    uuid.UUID    `json:"company_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	AssigneeID   *uuid.UUID   `json:"assignee_id"`
	AssigneeName *string      `json:"assignee_name"`
	Priority     TaskPriority `json:"priority"`
	Status       TaskStatus   `json:"status"`
	DueDate      *time.Time   `json:"due_date"`
	CreatedBy    uuid.UUID    `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type CheckupStatus string

const (
	CheckupPlanned CheckupStatus = "planned"
	CheckupOpen    CheckupStatus = "open"
	CheckupDone    CheckupStatus = "done"
)

// Rank orders the checkup lifecycle planned < open < done. Unknown
// statuses rank -1.
func (s CheckupStatus) Rank() int {
	switch s {
	case CheckupPlanned:
		return 0
	case CheckupOpen:
		return 1
	case CheckupDone:
		return 2
	}
	return -1
}

type HealthCheckup struct {
	ID                uuid.UUID     `json:"id"`
	CompanyID         uuid.UUID     `json:"company_id"`
	EmployeeID        uuid.UUID     `json:"employee_id"`
	Investigation     string        `json:"investigation"`
	AppointmentDate   time.Time     `json:"appointment_date"`
	CompletedDate     *time.Time    `json:"completed_date"`
	Status            CheckupStatus `json:"status"`
	CertificatePath   *string       `json:"certificate_path"`
	PreviousCheckupID *uuid.UUID    `json:"previous_checkup_id"`
	CreatedAt         time.Time     `json:"created_at"`
}

type DocumentCategory string

const (
	CategoryPolicy      DocumentCategory = "policy"
	CategoryCertificate DocumentCategory = "certificate"
	CategoryReport      DocumentCategory = "report"
	CategoryTraining    DocumentCategory = "training"
	CategoryContract    DocumentCategory = "contract"
	CategoryOther       DocumentCategory = "other"
)

func (c DocumentCategory) Valid() bool {
	switch c {
	case CategoryPolicy, CategoryCertificate, CategoryReport, CategoryTraining, CategoryContract, CategoryOther:
		return true
	}
	return false
}

// Document is the metadata row for a stored file. EmployeeID is a real
// foreign key; documents are not linked to employees through tags.
type Document struct {
	ID         uuid.UUID        `json:"id"`
	CompanyID  uuid.UUID        `json:"company_id"`
	EmployeeID *uuid.UUID       `json:"employee_id"`
	Title      string           `json:"title"`
	Category   DocumentCategory `json:"category"`
	FilePath   string           `json:"file_path"`
	SizeBytes  int64            `json:"size_bytes"`
	MimeType   string           `json:"mime_type"`
	UploadedBy uuid.UUID        `json:"uploaded_by"`
	ExpiresAt  *time.Time       `json:"expires_at"`
	IsPublic   bool             `json:"is_public"`
	Tags       []string         `json:"tags"`
	CreatedAt  time.Time        `json:"created_at"`
}

type ActionType string

const (
	ActionCreate       ActionType = "create"
	ActionUpdate       ActionType = "update"
	ActionDelete       ActionType = "delete"
	ActionUpload       ActionType = "upload"
	ActionStatusChange ActionType = "status_change"
)

// ActivityEntry is an append-only audit record. ActorName is cached at
// write time so the trail survives renames.
type ActivityEntry struct {
	ID         int64          `json:"id"`
	CompanyID  uuid.UUID      `json:"company_id"`
	EmployeeID *uuid.UUID     `json:"employee_id"`
	Action     string         `json:"action"`
	ActionType ActionType     `json:"action_type"`
	Details    string         `json:"details"`
	ActorID    uuid.UUID      `json:"actor_id"`
	ActorName  string         `json:"actor_name"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type AuditStatus string

const (
	AuditPlanned    AuditStatus = "planned"
	AuditInProgress AuditStatus = "in_progress"
	AuditCompleted  AuditStatus = "completed"
)

func (s AuditStatus) Valid() bool {
	return s == AuditPlanned || s == AuditInProgress || s == AuditCompleted
}

type Audit struct {
	ID           uuid.UUID   `json:"id"`
	CompanyID    uuid.UUID   `json:"company_id"`
	Title        string      `json:"title"`
	Status       AuditStatus `json:"status"`
	ScheduledFor *time.Time  `json:"scheduled_for"`
	CreatedAt    time.Time   `json:"created_at"`
}

type Training struct {
	ID         uuid.UUID  `json:"id"`
	CompanyID  uuid.UUID  `json:"company_id"`
	EmployeeID *uuid.UUID `json:"employee_id"`
	Title      string     `json:"title"`
	ValidUntil *time.Time `json:"valid_until"`
	CreatedAt  time.Time  `json:"created_at"`
}

type MeasureStatus string

const (
	MeasureOpen      MeasureStatus = "open"
	MeasureCompleted MeasureStatus = "completed"
)

func (s MeasureStatus) Valid() bool {
	return s == MeasureOpen || s == MeasureCompleted
}

// Measure is a corrective or preventive action with a due date.
type Measure struct {
	ID        uuid.UUID     `json:"id"`
	CompanyID uuid.UUID     `json:"company_id"`
	Title     string        `json:"title"`
	Status    MeasureStatus `json:"status"`
	DueDate   *time.Time    `json:"due_date"`
	CreatedAt time.Time     `json:"created_at"`
}
