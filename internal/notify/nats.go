package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/provisioner"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/tenant"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/utils"
)

// Headers set on every report message.
const (
	HeaderClinicID = "Clinic-Id"
	HeaderRunID    = "Run-Id"
	HeaderStatus   = "Run-Status"
	HeaderFinished = "Run-Finished-At"
)

const defaultTimeout = 5 * time.Second

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	PublishMsg(m *nats.Msg) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSPublisher publishes run reports as JSON on a core NATS subject.
type NATSPublisher struct {
	nc      conn
	subject string
	timeout time.Duration
}

// Ensure NATSPublisher implements Publisher
var _ Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, subject string, timeout time.Duration) (*NATSPublisher, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	nc, err := nats.Connect(url,
		nats.Name("clinic-schema-provisioner"),
		nats.Timeout(timeout),
		nats.MaxReconnects(3),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, s *nats.Subscription, err error) {
			logger.Log.Error("NATS error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to NATS at %s: %w", apperrors.ErrNATS, url, err)
	}

	return newPublisher(nc, subject, timeout), nil
}

func newPublisher(nc conn, subject string, timeout time.Duration) *NATSPublisher {
	return &NATSPublisher{nc: nc, subject: subject, timeout: timeout}
}

// PublishReport publishes report and waits until the server has received it.
func (p *NATSPublisher) PublishReport(ctx context.Context, report *provisioner.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report for %s: %w", report.Clinic, err)
	}

	status := "success"
	if report.Failed() {
		status = "failed"
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(HeaderClinicID, report.Clinic)
	msg.Header.Set(HeaderStatus, status)
	msg.Header.Set(HeaderFinished, utils.FormatISO8601(report.FinishedAt))
	if runID, err := tenant.RunIDFromContext(ctx); err == nil {
		msg.Header.Set(HeaderRunID, runID)
	}

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("%w: failed to publish report to %s: %w", apperrors.ErrNATS, p.subject, err)
	}
	if err := p.nc.FlushTimeout(p.timeout); err != nil {
		return fmt.Errorf("%w: failed to flush report to %s: %w", apperrors.ErrNATS, p.subject, err)
	}

	logger.FromContext(ctx).Debug("Published run report",
		zap.String("subject", p.subject),
		zap.String("status", status),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Close closes the NATS connection
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
