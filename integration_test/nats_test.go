//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startNATSContainer starts a plain NATS server and returns its host-accessible URL.
func startNATSContainer(ctx context.Context) (testcontainers.Container, string, error) {
	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.11-alpine",
			ExposedPorts: []string{"4222/tcp"},
			Cmd:          []string{"--name", "test-nats-server"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to start NATS container: %w", err)
	}

	host, err := natsContainer.Host(ctx)
	if err != nil {
		return natsContainer, "", fmt.Errorf("failed to get NATS host: %w", err)
	}
	port, err := natsContainer.MappedPort(ctx, "4222/tcp")
	if err != nil {
		return natsContainer, "", fmt.Errorf("failed to get NATS port: %w", err)
	}

	return natsContainer, fmt.Sprintf("nats://%s:%s", host, port.Port()), nil
}
