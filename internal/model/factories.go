package model

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/utils"
)

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// JSONB marshals v into a JSON column value.
func JSONB(v interface{}) datatypes.JSON {
	return datatypes.JSON(utils.MustMarshalJSON(v))
}

// NewContact creates a new Contact instance with default fake data.
// Non-zero fields of the optional override replace the defaults.
func NewContact(overrideDefaults ...*Contact) *Contact {
	now := utils.Now()
	base := &Contact{
		ID:             uuid.NewString(),
		FirstName:      gofakeit.FirstName(),
		LastName:       gofakeit.LastName(),
		Email:          gofakeit.Email(),
		Phone:          gofakeit.Phone(),
		Status:         gofakeit.RandomString([]string{ContactStatusLead, ContactStatusClient}),
		Source:         gofakeit.RandomString([]string{"website", "referral", "walk-in"}),
		CreatedAt:      now.Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt:      now,
		PreVisitStatus: JSONB(DefaultPreVisitStatus()),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.FirstName != "" {
			base.FirstName = ovr.FirstName
		}
		if ovr.LastName != "" {
			base.LastName = ovr.LastName
		}
		if ovr.Email != "" {
			base.Email = ovr.Email
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.PreVisitStatus != nil {
			base.PreVisitStatus = ovr.PreVisitStatus
		}
	}
	return base
}

// NewOnboardingTask creates a new OnboardingTask for the given patient with default fake data.
func NewOnboardingTask(patientID string) *OnboardingTask {
	due := utils.Now().AddDate(0, 0, gofakeit.Number(1, 14))
	return &OnboardingTask{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		Title:       gofakeit.RandomString([]string{"Send intake forms", "Collect card on file", "Schedule first visit"}),
		Description: gofakeit.Sentence(8),
		Status:      "pending",
		DueDate:     &due,
		CreatedAt:   utils.Now(),
	}
}

// NewIntakeForm creates a new IntakeForm for the given patient with default fake data.
func NewIntakeForm(patientID string) *IntakeForm {
	answers := map[string]interface{}{
		"reason_for_visit": gofakeit.Sentence(6),
		"allergies":        gofakeit.RandomString([]string{"none", "penicillin", "latex"}),
	}
	return &IntakeForm{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		FormType:    "new_patient",
		Responses:   JSONB(answers),
		SubmittedAt: utils.Now(),
	}
}
