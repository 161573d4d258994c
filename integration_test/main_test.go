//go:build integration

package integration_test

import (
	"context"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/zap/zaptest"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/config"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
)

const (
	schemaPrefix  = "clinic_"
	reportSubject = "clinic.provisioning.completed"
)

// BaseIntegrationSuite sets up the core infrastructure (Postgres, NATS).
type BaseIntegrationSuite struct {
	suite.Suite
	Postgres    testcontainers.Container
	PostgresDSN string
	NATS        testcontainers.Container
	NATSURL     string
	Ctx         context.Context // Context for the suite
	cancel      context.CancelFunc
}

// SetupSuite runs once before the tests in the suite are run.
func (s *BaseIntegrationSuite) SetupSuite() {
	s.Ctx, s.cancel = context.WithCancel(context.Background())
	log.Println("Setting up BaseIntegrationSuite...")
	logger.Log = zaptest.NewLogger(s.T()).Named("BaseIntegrationSuite")

	startTime := time.Now()
	var err error

	s.Postgres, s.PostgresDSN, err = startPostgres(s.Ctx)
	if err != nil {
		s.T().Fatalf("Failed to start postgres: %v", err)
	}
	log.Println("PostgreSQL container started.")

	s.NATS, s.NATSURL, err = startNATSContainer(s.Ctx)
	if err != nil {
		s.T().Fatalf("Failed to start NATS: %v", err)
	}
	log.Println("NATS container started.")

	log.Printf("BaseIntegrationSuite setup complete in %v", time.Since(startTime))
}

// TearDownSuite runs once after all tests in the suite have finished.
func (s *BaseIntegrationSuite) TearDownSuite() {
	log.Println("Tearing down BaseIntegrationSuite...")
	startTime := time.Now()

	if s.NATS != nil {
		if err := s.NATS.Terminate(s.Ctx); err != nil {
			s.T().Logf("Error terminating NATS container: %v", err)
		}
	}

	if s.Postgres != nil {
		if err := s.Postgres.Terminate(s.Ctx); err != nil {
			s.T().Logf("Error terminating PostgreSQL container: %v", err)
		}
	}

	if s.cancel != nil {
		s.cancel()
	}

	log.Printf("BaseIntegrationSuite teardown complete in %v", time.Since(startTime))
}

// SetupTest runs before each test in the suite.
// It drops every clinic schema to ensure a clean state.
func (s *BaseIntegrationSuite) SetupTest() {
	err := dropClinicSchemas(s.Ctx, s.PostgresDSN, schemaPrefix)
	s.Require().NoError(err, "Failed to drop clinic schemas")
}

// Config returns a provisioner configuration pointing at the suite's containers.
func (s *BaseIntegrationSuite) Config(clinics ...string) *config.Config {
	cfg := &config.Config{
		Environment: "integration",
		LogLevel:    "debug",
		LogFormat:   "console",
		Database: config.DatabaseConfig{
			Driver:         config.DriverPostgres,
			PostgresDSN:    s.PostgresDSN,
			SchemaPrefix:   schemaPrefix,
			ConnectTimeout: 30 * time.Second,
		},
		Clinics: clinics,
		Workers: 2,
		Seed: config.SeedConfig{
			AdminEmail:    "admin@clinic.local",
			AdminPassword: "integration-password",
		},
	}
	cfg.Metrics.Job = "clinic_schema_provisioner_integration"
	cfg.Notify.NatsURL = s.NATSURL
	cfg.Notify.Subject = reportSubject
	cfg.Notify.Timeout = 5 * time.Second
	return cfg
}
