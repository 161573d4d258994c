// Package catalog declares the clinic CRM schema as a provisioning plan.
package catalog

import (
	"fmt"

	"github.com/google/uuid"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/model"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/provisioner"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/validator"
)

// Table names in creation order.
const (
	TableContacts        = "contacts"
	TableUsers           = "users"
	TablePatientLogins   = "patient_logins"
	TableOnboardingTasks = "onboarding_tasks"
	TableAutomatedEmails = "automated_emails"
	TableIntakeForms     = "intake_forms"
)

// Demo contact seed.
const (
	DemoContactEmail     = "demo.patient@example.com"
	DemoContactFirstName = "Demo"
	DemoContactLastName  = "Patient"

	AdminFullName = "Clinic Administrator"
)

// seedNamespace scopes the deterministic ids of seed rows.
var seedNamespace = uuid.MustParse("6f1c2a7e-3b0d-4c8e-9a55-2d7e4b1f0c93")

// Options selects the optional parts of the plan.
type Options struct {
	// AdminEmail is the login of the seeded administrator.
	AdminEmail string
	// AdminPasswordHash is a bcrypt hash. The admin seed is omitted when empty.
	AdminPasswordHash string
	// DemoContact adds one demo Lead contact.
	DemoContact bool
}

// TableNames lists the clinic tables in creation order.
func TableNames() []string {
	return []string{
		TableContacts,
		TableUsers,
		TablePatientLogins,
		TableOnboardingTasks,
		TableAutomatedEmails,
		TableIntakeForms,
	}
}

// SeedID returns the stable primary key of the seed row identified by
// table and its unique key value.
func SeedID(table, key string) string {
	return uuid.NewSHA1(seedNamespace, []byte(table+":"+key)).String()
}

// Build returns the clinic schema plan: tables, additive migrations,
// indexes, then seed rows.
func Build(opts Options) (*provisioner.Plan, error) {
	plan := provisioner.NewPlan()

	for _, t := range tables() {
		plan.EnsureTable(t)
	}
	for _, m := range migrations() {
		plan.EnsureColumn(m.table, m.column)
	}
	for _, idx := range indexes() {
		plan.EnsureIndex(idx)
	}

	if opts.AdminPasswordHash != "" {
		if err := validator.ValidateVar(opts.AdminEmail, "required,email"); err != nil {
			return nil, fmt.Errorf("%w: admin email %q: %v", apperrors.ErrInvalidPlan, opts.AdminEmail, err)
		}
		plan.SeedRow(TableUsers, "email", provisioner.Row{
			"id":            SeedID(TableUsers, opts.AdminEmail),
			"email":         opts.AdminEmail,
			"password_hash": opts.AdminPasswordHash,
			"full_name":     AdminFullName,
			"role":          model.RoleAdmin,
		})
	}

	if opts.DemoContact {
		plan.SeedRow(TableContacts, "email", provisioner.Row{
			"id":         SeedID(TableContacts, DemoContactEmail),
			"first_name": DemoContactFirstName,
			"last_name":  DemoContactLastName,
			"email":      DemoContactEmail,
			"status":     model.ContactStatusLead,
			"source":     "seed",
		})
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

func id() provisioner.Column {
	return provisioner.Column{Name: "id", Type: "text", PrimaryKey: true}
}

func createdAt() provisioner.Column {
	return provisioner.Column{Name: "created_at", Type: "timestamp", NotNull: true, Default: provisioner.CurrentTimestamp}
}

func updatedAt() provisioner.Column {
	return provisioner.Column{Name: "updated_at", Type: "timestamp", NotNull: true, Default: provisioner.CurrentTimestamp}
}

func patientFK() provisioner.ForeignKey {
	return provisioner.ForeignKey{Column: "patient_id", RefTable: TableContacts, RefColumn: "id", OnDelete: "CASCADE"}
}

// tables holds the base shape of each table. Columns added after the first
// release live in migrations so existing stores pick them up.
func tables() []provisioner.TableSpec {
	return []provisioner.TableSpec{
		{
			Name: TableContacts,
			Columns: []provisioner.Column{
				id(),
				{Name: "first_name", Type: "text", NotNull: true},
				{Name: "last_name", Type: "text", NotNull: true},
				{Name: "email", Type: "text", NotNull: true, Unique: true},
				{Name: "phone", Type: "text"},
				{Name: "date_of_birth", Type: "date"},
				{Name: "status", Type: "text", NotNull: true, Default: model.ContactStatusLead},
				{Name: "source", Type: "text"},
				{Name: "notes", Type: "text"},
				createdAt(),
				updatedAt(),
			},
		},
		{
			Name: TableUsers,
			Columns: []provisioner.Column{
				id(),
				{Name: "email", Type: "text", NotNull: true, Unique: true},
				{Name: "password_hash", Type: "text", NotNull: true},
				{Name: "full_name", Type: "text"},
				{Name: "role", Type: "text", NotNull: true, Default: model.RoleStaff},
				createdAt(),
				updatedAt(),
			},
		},
		{
			Name: TablePatientLogins,
			Columns: []provisioner.Column{
				id(),
				{Name: "contact_id", Type: "text", NotNull: true, Unique: true},
				{Name: "email", Type: "text", NotNull: true, Unique: true},
				{Name: "password_hash", Type: "text", NotNull: true},
				{Name: "last_login_at", Type: "timestamp"},
				createdAt(),
			},
			ForeignKeys: []provisioner.ForeignKey{
				{Column: "contact_id", RefTable: TableContacts, RefColumn: "id", OnDelete: "CASCADE"},
			},
		},
		{
			Name: TableOnboardingTasks,
			Columns: []provisioner.Column{
				id(),
				{Name: "patient_id", Type: "text", NotNull: true},
				{Name: "title", Type: "text", NotNull: true},
				{Name: "description", Type: "text"},
				{Name: "status", Type: "text", NotNull: true, Default: "pending"},
				{Name: "due_date", Type: "date"},
				createdAt(),
				{Name: "completed_at", Type: "timestamp"},
			},
			ForeignKeys: []provisioner.ForeignKey{patientFK()},
		},
		{
			Name: TableAutomatedEmails,
			Columns: []provisioner.Column{
				id(),
				{Name: "patient_id", Type: "text", NotNull: true},
				{Name: "template", Type: "text", NotNull: true},
				{Name: "subject", Type: "text"},
				{Name: "status", Type: "text", NotNull: true, Default: "queued"},
				createdAt(),
				{Name: "sent_at", Type: "timestamp"},
			},
			ForeignKeys: []provisioner.ForeignKey{patientFK()},
		},
		{
			Name: TableIntakeForms,
			Columns: []provisioner.Column{
				id(),
				{Name: "patient_id", Type: "text", NotNull: true},
				{Name: "form_type", Type: "text", NotNull: true},
				{Name: "responses", Type: "json"},
				{Name: "submitted_at", Type: "timestamp", NotNull: true, Default: provisioner.CurrentTimestamp},
				{Name: "reviewed", Type: "boolean", NotNull: true, Default: false},
				{Name: "reviewed_by", Type: "text"},
				{Name: "reviewed_at", Type: "timestamp"},
			},
			ForeignKeys: []provisioner.ForeignKey{patientFK()},
		},
	}
}

type migration struct {
	table  string
	column provisioner.Column
}

func migrations() []migration {
	return []migration{
		{
			table: TableContacts,
			column: provisioner.Column{
				Name:    "pre_visit_status",
				Type:    "json",
				NotNull: true,
				Default: model.DefaultPreVisitStatus(),
			},
		},
	}
}

func indexes() []provisioner.IndexSpec {
	return []provisioner.IndexSpec{
		{Name: "idx_contacts_status", Table: TableContacts, Columns: []string{"status"}},
		{Name: "idx_onboarding_tasks_patient_id", Table: TableOnboardingTasks, Columns: []string{"patient_id"}},
		{Name: "idx_automated_emails_patient_id", Table: TableAutomatedEmails, Columns: []string{"patient_id"}},
		{Name: "idx_intake_forms_patient_id", Table: TableIntakeForms, Columns: []string{"patient_id"}},
	}
}
