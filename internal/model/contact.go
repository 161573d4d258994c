package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm/schema"
)

// Contact statuses
const (
	ContactStatusLead     = "Lead"
	ContactStatusClient   = "Client"
	ContactStatusInactive = "Inactive"
)

// Contact is a patient or lead of the clinic.
type Contact struct {
	ID             string         `json:"id" gorm:"primaryKey;type:text"`
	FirstName      string         `json:"first_name" gorm:"type:text" validate:"required"`
	LastName       string         `json:"last_name" gorm:"type:text" validate:"required"`
	Email          string         `json:"email" gorm:"type:text;uniqueIndex" validate:"required,email"`
	Phone          string         `json:"phone,omitempty" gorm:"type:text"`
	DateOfBirth    *time.Time     `json:"date_of_birth,omitempty" gorm:"type:date"`
	Status         string         `json:"status" gorm:"type:text;default:Lead" validate:"oneof=Lead Client Inactive"`
	Source         string         `json:"source,omitempty" gorm:"type:text"`
	Notes          string         `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	PreVisitStatus datatypes.JSON `json:"pre_visit_status,omitempty" gorm:"column:pre_visit_status"`
}

// TableName specifies the table name for the Contact model, respecting the Namer.
func (Contact) TableName(namer schema.Namer) string {
	return namer.TableName("contacts")
}

// PreVisitStatus records the milestones a patient passes before the first visit.
type PreVisitStatus struct {
	IntakeFormsSent           bool `json:"intake_forms_sent"`
	IntakeFormsCompleted      bool `json:"intake_forms_completed"`
	CCOnFile                  bool `json:"cc_on_file"`
	FirstAppointmentScheduled bool `json:"first_appointment_scheduled"`
}

// DefaultPreVisitStatus is the value every contact starts with.
func DefaultPreVisitStatus() PreVisitStatus {
	return PreVisitStatus{}
}

// DecodePreVisitStatus parses the JSON stored on a contact row.
func (c Contact) DecodePreVisitStatus() (PreVisitStatus, error) {
	var s PreVisitStatus
	if len(c.PreVisitStatus) == 0 {
		return s, nil
	}
	err := json.Unmarshal(c.PreVisitStatus, &s)
	return s, err
}
