package models

import (
	"time"

	"github.com/google/uuid"
)

type Employee struct {
	ID              uuid.UUID      `json:"id"`
	CompanyID       uuid.UUID      `json:"company_id"`
	EmployeeNumber  string         `json:"employee_number"`
	FullName        string         `json:"full_name"`
	Email           string         `json:"email"`
	DepartmentID    *uuid.UUID     `json:"department_id"`
	DepartmentName  *string        `json:"department_name"`
	JobRoleID       *uuid.UUID     `json:"job_role_id"`
	ExposureGroupID *uuid.UUID     `json:"exposure_group_id"`
	Active          bool           `json:"active"`
	Tags            []string       `json:"tags"`
	ProfileFields   []ProfileField `json:"profile_fields"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ProfileField is a user-defined attribute on an employee record.
type ProfileField struct {
	ID    string `json:"id"`
	Label string `json:"label" binding:"required"`
	Type  string `json:"type" binding:"required,oneof=text number date boolean"`
	Value string `json:"value"`
}

// EmployeeInput carries the writable fields for create and update.
type EmployeeInput struct {
	EmployeeNumber  string     `json:"employee_number" binding:"required,max=64"`
	FullName        string     `json:"full_name" binding:"required,max=200"`
	Email           string     `json:"email" binding:"omitempty,email"`
	DepartmentID    *uuid.UUID `json:"department_id"`
	JobRoleID       *uuid.UUID `json:"job_role_id"`
	ExposureGroupID *uuid.UUID `json:"exposure_group_id"`
}

// Note is one entry in an employee's note thread. Notes are rows of their
// own; ParentReplyID links a reply to the note it answers.
type Note struct {
	ID            int64     `json:"id"`
	CompanyID     uuid.UUID `json:"company_id"`
	EmployeeID    uuid.UUID `json:"employee_id"`
	AuthorID      uuid.UUID `json:"author_id"`
	AuthorName    string    `json:"author_name"`
	Content       string    `json:"content"`
	ParentReplyID *int64    `json:"parent_reply_id"`
	CreatedAt     time.Time `json:"created_at"`
}
