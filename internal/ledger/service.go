package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxAppendAttempts bounds the automatic retry loop on sequence conflicts.
// Conflicts only occur when another instance wins the race for the same
// subject, so a small bound is enough.
const maxAppendAttempts = 3

// ErrValidation marks a malformed append request, rejected before any store
// access.
var ErrValidation = errors.New("invalid append request")

// ErrConflictRetryExhausted is returned when every append attempt lost the
// sequence race. The caller's event was not persisted and may be resubmitted.
var ErrConflictRetryExhausted = errors.New("append retries exhausted on sequence conflict")

var amountPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// AppendRequest carries the caller-supplied fields of a new entry. Sequence
// number, chain linkage, timestamp and hashes are computed by the service.
type AppendRequest struct {
	SubjectID   string
	EventType   string
	EventData   json.RawMessage
	Amount      *string
	PerformedBy string
	IPAddress   *string
}

func (r *AppendRequest) validate() error {
	if r.SubjectID == "" {
		return fmt.Errorf("%w: subjectId is required", ErrValidation)
	}
	if r.EventType == "" {
		return fmt.Errorf("%w: eventType is required", ErrValidation)
	}
	if len(r.EventData) == 0 {
		return fmt.Errorf("%w: eventData is required", ErrValidation)
	}
	if !isJSONObject(r.EventData) {
		return fmt.Errorf("%w: eventData must be a JSON object", ErrValidation)
	}
	if r.PerformedBy == "" {
		return fmt.Errorf("%w: performedBy is required", ErrValidation)
	}
	if r.Amount != nil && !amountPattern.MatchString(*r.Amount) {
		return fmt.Errorf("%w: amount must be a decimal number", ErrValidation)
	}
	return nil
}

// CheckpointStore records the last observed chain tip per subject in storage
// independent of the audited chain. It lets verification catch whole-tail
// truncation, which pure chain walking cannot see. All methods are best-effort
// from the service's point of view.
type CheckpointStore interface {
	Record(ctx context.Context, subjectID string, sequenceNum int, hash string) error
	Get(ctx context.Context, subjectID string) (sequenceNum int, hash string, ok bool, err error)
}

// AlertFunc is invoked when a verification triggered by an append or a sweep
// finds the chain invalid. Implementations must never block for long and must
// never panic into the caller.
type AlertFunc func(ctx context.Context, subjectID, detectedBy string, result *VerificationResult)

// Service implements the append, read, verify and sweep operations over a
// Store. Appends for the same subject are serialized by an in-process keyed
// mutex; the store's uniqueness constraint plus retry covers races between
// separate instances sharing one database.
type Service struct {
	store       Store
	checkpoints CheckpointStore
	locks       *subjectLocks
	alert       AlertFunc
	onAppend    func()
	onVerify    func(valid bool)
	logger      *zap.Logger
}

// NewService creates a ledger Service over the given store.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		locks:  newSubjectLocks(),
		logger: logger,
	}
}

// SetCheckpointStore enables chain-tip checkpointing. Pass a non-nil store
// only; leaving it unset disables the truncation cross-check.
func (s *Service) SetCheckpointStore(cs CheckpointStore) {
	s.checkpoints = cs
}

// SetAlertHook configures the tamper alert callback.
func (s *Service) SetAlertHook(fn AlertFunc) {
	s.alert = fn
}

// SetAppendRecorder configures a metrics callback invoked after every
// successful append.
func (s *Service) SetAppendRecorder(fn func()) {
	s.onAppend = fn
}

// SetVerifyRecorder configures a metrics callback invoked after every
// verification pass.
func (s *Service) SetVerifyRecorder(fn func(valid bool)) {
	s.onVerify = fn
}

// Append builds and persists the next entry for a subject. On success the
// subject's chain is re-verified in the background; an invalid result goes to
// the alert hook without blocking the caller.
func (s *Service) Append(ctx context.Context, req AppendRequest) (*Entry, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	canonical, err := CanonicalizeJSON(req.EventData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	lock := s.locks.acquire(req.SubjectID)
	defer s.locks.release(req.SubjectID, lock)

	var entry *Entry
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		last, err := s.store.Last(ctx, req.SubjectID)
		if err != nil {
			return nil, fmt.Errorf("read chain tail: %w", err)
		}

		sequenceNum, previousHash := 0, Genesis
		if last != nil {
			sequenceNum = last.SequenceNum + 1
			previousHash = last.CurrentHash
		}

		e := &Entry{
			ID:           uuid.New(),
			SubjectID:    req.SubjectID,
			SequenceNum:  sequenceNum,
			PreviousHash: previousHash,
			EventType:    req.EventType,
			EventData:    canonical,
			Amount:       req.Amount,
			PerformedBy:  req.PerformedBy,
			Timestamp:    time.Now().UTC().Truncate(time.Microsecond),
			IPAddress:    req.IPAddress,
		}
		e.CurrentHash = ComputeHash(e)

		err = s.store.Insert(ctx, e)
		if errors.Is(err, ErrDuplicateSequence) {
			// Another instance won the race for this sequence number.
			// Re-read the tail and recompute.
			s.logger.Warn("sequence conflict on append, retrying",
				zap.String("subject_id", req.SubjectID),
				zap.Int("sequence", sequenceNum),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, err
		}
		entry = e
		break
	}
	if entry == nil {
		return nil, fmt.Errorf("append to %s: %w", req.SubjectID, ErrConflictRetryExhausted)
	}

	if s.onAppend != nil {
		s.onAppend()
	}
	s.recordCheckpoint(ctx, entry)

	detectedBy := "system-auto-detection (triggered by " + req.PerformedBy + ")"
	go s.verifyAfterWrite(entry.SubjectID, detectedBy)

	return entry, nil
}

// Entries returns the subject's full chain in sequence order.
func (s *Service) Entries(ctx context.Context, subjectID string) ([]*Entry, error) {
	return s.store.List(ctx, subjectID)
}

// Latest returns the newest entry for the subject, or nil when there is none.
func (s *Service) Latest(ctx context.Context, subjectID string) (*Entry, error) {
	return s.store.Last(ctx, subjectID)
}

// Verify fetches the subject's chain and runs the full verification pass,
// including the checkpoint truncation cross-check when configured. Read-only;
// safe to run concurrently with appends.
func (s *Service) Verify(ctx context.Context, subjectID string) (*VerificationResult, error) {
	entries, err := s.store.List(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", subjectID, err)
	}

	result := VerifyEntries(entries)
	s.checkTruncation(ctx, subjectID, entries, result)

	if s.onVerify != nil {
		s.onVerify(result.IsValid)
	}
	return result, nil
}

// SweepResult summarizes a full-population verification pass.
type SweepResult struct {
	TotalLoans      int      `json:"totalLoans"`
	ValidLoans      int      `json:"validLoans"`
	TamperedLoans   int      `json:"tamperedLoans"`
	TamperedLoanIDs []string `json:"tamperedLoanIds"`
	Errors          []string `json:"errors"`
}

// SweepAll verifies every distinct subject known to the store and alerts on
// each invalid chain.
func (s *Service) SweepAll(ctx context.Context) (*SweepResult, error) {
	subjects, err := s.store.Subjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	result := &SweepResult{
		TotalLoans:      len(subjects),
		TamperedLoanIDs: []string{},
		Errors:          []string{},
	}

	for _, subjectID := range subjects {
		res, err := s.Verify(ctx, subjectID)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("verify %s: %v", subjectID, err))
			continue
		}
		if res.IsValid {
			result.ValidLoans++
			continue
		}

		result.TamperedLoans++
		result.TamperedLoanIDs = append(result.TamperedLoanIDs, subjectID)
		s.logger.Warn("sweep found tampered chain",
			zap.String("subject_id", subjectID),
			zap.Ints("invalid_entries", res.InvalidEntries),
		)
		if s.alert != nil {
			s.alert(ctx, subjectID, "scheduled-sweep", res)
		}
	}
	return result, nil
}

// verifyAfterWrite re-verifies a chain off the critical path of an append.
func (s *Service) verifyAfterWrite(subjectID, detectedBy string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := s.Verify(ctx, subjectID)
	if err != nil {
		s.logger.Error("post-append verification failed", zap.String("subject_id", subjectID), zap.Error(err))
		return
	}
	if result.IsValid {
		return
	}

	s.logger.Warn("tampering detected after append",
		zap.String("subject_id", subjectID),
		zap.Ints("invalid_entries", result.InvalidEntries),
		zap.Strings("errors", result.Errors),
	)
	if s.alert != nil {
		s.alert(ctx, subjectID, detectedBy, result)
	}
}

func (s *Service) recordCheckpoint(ctx context.Context, e *Entry) {
	if s.checkpoints == nil {
		return
	}
	if err := s.checkpoints.Record(ctx, e.SubjectID, e.SequenceNum, e.CurrentHash); err != nil {
		s.logger.Warn("record chain checkpoint", zap.String("subject_id", e.SubjectID), zap.Error(err))
	}
}

// checkTruncation compares the chain against the recorded tip. Deleting the
// tail of a chain leaves a perfectly linked prefix that pure verification
// accepts; the checkpoint makes it visible.
func (s *Service) checkTruncation(ctx context.Context, subjectID string, entries []*Entry, result *VerificationResult) {
	if s.checkpoints == nil {
		return
	}
	seq, hash, ok, err := s.checkpoints.Get(ctx, subjectID)
	if err != nil {
		s.logger.Warn("read chain checkpoint", zap.String("subject_id", subjectID), zap.Error(err))
		return
	}
	if !ok {
		return
	}

	if seq > len(entries)-1 {
		result.IsValid = false
		result.BrokenChain = true
		result.Errors = append(result.Errors, fmt.Sprintf(
			"chain tip behind recorded checkpoint (have %d entries, checkpoint at sequence %d)",
			len(entries), seq))
		return
	}
	if entries[seq].CurrentHash != hash {
		result.markInvalid(seq, fmt.Sprintf(
			"entry %d: currentHash does not match recorded checkpoint", seq))
	}
}
