package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// OnboardingTask is a to-do item on a patient's onboarding checklist.
type OnboardingTask struct {
	ID          string     `json:"id" gorm:"primaryKey;type:text"`
	PatientID   string     `json:"patient_id" gorm:"column:patient_id;type:text;index" validate:"required"`
	Title       string     `json:"title" gorm:"type:text" validate:"required"`
	Description string     `json:"description,omitempty" gorm:"type:text"`
	Status      string     `json:"status" gorm:"type:text;default:pending" validate:"oneof=pending completed"`
	DueDate     *time.Time `json:"due_date,omitempty" gorm:"type:date"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM, respecting the Namer.
func (OnboardingTask) TableName(namer schema.Namer) string {
	return namer.TableName("onboarding_tasks")
}

// AutomatedEmail is an email queued or sent to a patient by the CRM.
type AutomatedEmail struct {
	ID        string     `json:"id" gorm:"primaryKey;type:text"`
	PatientID string     `json:"patient_id" gorm:"column:patient_id;type:text;index" validate:"required"`
	Template  string     `json:"template" gorm:"type:text" validate:"required"`
	Subject   string     `json:"subject,omitempty" gorm:"type:text"`
	Status    string     `json:"status" gorm:"type:text;default:queued" validate:"oneof=queued sent failed"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// TableName specifies the table name for GORM, respecting the Namer.
func (AutomatedEmail) TableName(namer schema.Namer) string {
	return namer.TableName("automated_emails")
}

// IntakeForm is a questionnaire submitted by a patient.
type IntakeForm struct {
	ID          string         `json:"id" gorm:"primaryKey;type:text"`
	PatientID   string         `json:"patient_id" gorm:"column:patient_id;type:text;index" validate:"required"`
	FormType    string         `json:"form_type" gorm:"type:text" validate:"required"`
	Responses   datatypes.JSON `json:"responses,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Reviewed    bool           `json:"reviewed"`
	ReviewedBy  string         `json:"reviewed_by,omitempty" gorm:"type:text"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty"`
}

// TableName specifies the table name for GORM, respecting the Namer.
func (IntakeForm) TableName(namer schema.Namer) string {
	return namer.TableName("intake_forms")
}
