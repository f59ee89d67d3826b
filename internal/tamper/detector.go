package tamper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loanproof/loanproof/internal/email"
	"github.com/loanproof/loanproof/internal/ledger"
)

// OperatorDirectory resolves the notification audience for a finding.
type OperatorDirectory interface {
	AlertRecipients(ctx context.Context, tenantID *string) ([]string, error)
}

// Detector records tamper findings and dispatches best-effort notifications.
// It never returns an error and never panics into its caller: failures along
// the alerting path are logged and swallowed, since the triggering append,
// read or verify must not be affected.
type Detector struct {
	findings   FindingStore
	directory  OperatorDirectory
	sender     email.AlertSender
	appURL     string
	onDispatch func(sent bool)
	logger     *zap.Logger
}

// NewDetector creates a Detector.
func NewDetector(findings FindingStore, directory OperatorDirectory, sender email.AlertSender, logger *zap.Logger) *Detector {
	return &Detector{
		findings:  findings,
		directory: directory,
		sender:    sender,
		logger:    logger,
	}
}

// SetAppURL configures the dashboard base URL included in alert messages.
func (d *Detector) SetAppURL(url string) {
	d.appURL = url
}

// SetDispatchRecorder configures a metrics callback for dispatch outcomes.
func (d *Detector) SetDispatchRecorder(fn func(sent bool)) {
	d.onDispatch = fn
}

// Report durably logs the finding and notifies the resolved audience.
// The returned Outcome says whether anything was actually delivered.
func (d *Detector) Report(ctx context.Context, alert *Alert) Outcome {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tamper detector panic recovered", zap.Any("panic", r))
		}
	}()

	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.DetectedAt.IsZero() {
		alert.DetectedAt = time.Now().UTC()
	}
	if alert.DetectedBy == "" {
		alert.DetectedBy = "system"
	}

	d.logger.Warn("ledger tampering detected",
		zap.String("subject_id", alert.SubjectID),
		zap.String("detected_by", alert.DetectedBy),
		zap.Ints("invalid_entries", alert.InvalidEntries),
		zap.Strings("errors", alert.Errors),
	)

	if err := d.findings.Record(ctx, alert); err != nil {
		d.logger.Error("record tamper finding", zap.String("subject_id", alert.SubjectID), zap.Error(err))
	}

	outcome := Outcome{Recipients: []string{}, Timestamp: alert.DetectedAt}

	recipients, err := d.directory.AlertRecipients(ctx, alert.TenantID)
	if err != nil {
		d.logger.Error("resolve alert recipients", zap.Error(err))
		d.recordDispatch(false)
		return outcome
	}
	if len(recipients) == 0 {
		d.logger.Warn("no operators to alert", zap.String("subject_id", alert.SubjectID))
		d.recordDispatch(false)
		return outcome
	}

	subject, body := buildMessage(alert, d.appURL)
	if err := d.sender.Send(ctx, recipients, subject, body); err != nil {
		d.logger.Error("send tamper alert",
			zap.String("subject_id", alert.SubjectID),
			zap.Int("recipients", len(recipients)),
			zap.Error(err),
		)
		d.recordDispatch(false)
		return outcome
	}

	outcome.Sent = true
	outcome.Recipients = recipients
	d.recordDispatch(true)
	return outcome
}

// Hook adapts the detector to the ledger service's alert callback. Reports
// run on the caller's goroutine; the append path already invokes the hook off
// its critical path.
func (d *Detector) Hook() ledger.AlertFunc {
	return func(ctx context.Context, subjectID, detectedBy string, result *ledger.VerificationResult) {
		d.Report(ctx, &Alert{
			SubjectID:      subjectID,
			DetectedBy:     detectedBy,
			TotalEntries:   result.TotalEntries,
			InvalidEntries: result.InvalidEntries,
			Errors:         result.Errors,
		})
	}
}

func (d *Detector) recordDispatch(sent bool) {
	if d.onDispatch != nil {
		d.onDispatch(sent)
	}
}
