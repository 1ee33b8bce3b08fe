package service

import (
	"context"
	"errors"
	"sort"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/paramstore/internal/audit/domain"
	"github.com/smallbiznis/paramstore/internal/events"
	obscontext "github.com/smallbiznis/paramstore/internal/observability/context"
	"github.com/smallbiznis/paramstore/internal/override"
	"github.com/smallbiznis/paramstore/internal/parameter/domain"
	"github.com/smallbiznis/paramstore/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// errStaleVersion aborts the transaction; it is turned into a ConflictError after rollback.
	errStaleVersion = errors.New("stale_version")
	// errVersionMoved means the compare-and-set write lost to a concurrent commit.
	errVersionMoved = errors.New("version_moved")
)

// mutation describes one read-modify-write against a single parameter.
type mutation struct {
	operation string
	action    auditdomain.Action
	event     events.Type
	guard     domain.VersionGuard
	attempted attempted
	apply     func(next *domain.Parameter) error
}

// attempted is the subset of fields a caller asked to change. It drives the
// conflictingFields diff, so fields absent from the request never appear there.
type attempted struct {
	key              *string
	value            any
	hasValue         bool
	description      *string
	hasDescription   bool
	isActive         *bool
	overrides        map[string]any
	removedCodes     []string
	hasOverrides     bool
	replaceOverrides bool
}

func (a attempted) empty() bool {
	return a.key == nil && !a.hasValue && !a.hasDescription && a.isActive == nil && !a.hasOverrides
}

// conflictingFields lists the attempted fields whose requested value differs
// from stored, in a stable order.
func (a attempted) conflictingFields(stored *domain.Parameter) []string {
	fields := []string{}
	if a.key != nil && *a.key != stored.Key {
		fields = append(fields, "key")
	}
	if a.hasValue && !override.ValuesEqual(a.value, stored.DefaultValue()) {
		fields = append(fields, "value")
	}
	if a.hasDescription && !equalStrings(a.description, stored.Description) {
		fields = append(fields, "description")
	}
	if a.isActive != nil && *a.isActive != stored.IsActive {
		fields = append(fields, "isActive")
	}
	if !a.hasOverrides {
		return fields
	}

	current := stored.CountryOverrides()
	removed := make(map[string]struct{}, len(a.removedCodes))
	for _, code := range a.removedCodes {
		removed[code] = struct{}{}
	}

	union := map[string]struct{}{}
	for code := range a.overrides {
		union[code] = struct{}{}
	}
	for code := range current.Country {
		union[code] = struct{}{}
	}
	for code := range removed {
		union[code] = struct{}{}
	}
	codes := make([]string, 0, len(union))
	for code := range union {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		storedValue, stored := current.Lookup(code)
		requested, provided := a.overrides[code]
		if !provided {
			_, wantsRemoval := removed[code]
			if (wantsRemoval || a.replaceOverrides) && stored {
				fields = append(fields, overrideField(code))
			}
			continue
		}
		if !stored || !override.ValuesEqual(requested, storedValue) {
			fields = append(fields, overrideField(code))
		}
	}
	return fields
}

// mutate runs m as a single read-modify-write transaction bounded by the
// transaction timeout policy. A lost compare-and-set is re-run from the read
// step; a stale lastKnownVersion is never retried.
func (s *Service) mutate(ctx context.Context, id snowflake.ID, m mutation) (*domain.Parameter, error) {
	actor, ok := obscontext.ActorFromContext(ctx)
	if !ok {
		return nil, domain.ErrMissingActor
	}
	maxAttempts := s.policy.Get().Transaction.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		committed *domain.Parameter
		stale     *domain.Parameter
		changed   []string
		forced    bool
	)
	err := s.withTimeout(ctx, m.operation, func(txCtx context.Context) error {
		for attempt := 1; ; attempt++ {
			committed, stale, changed, forced = nil, nil, nil, false

			err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
				current, err := s.repo.FindByIDForUpdate(txCtx, tx, id)
				if err != nil {
					return err
				}
				if current == nil {
					return domain.ErrNotFound
				}

				mismatch := m.guard.LastKnownVersion != nil && *m.guard.LastKnownVersion != current.Version
				if mismatch && !m.guard.ForceUpdate {
					stale = current
					return errStaleVersion
				}

				next := current.Clone()
				if err := m.apply(next); err != nil {
					return err
				}
				editor := actor.EditorID
				next.Version = current.Version + 1
				next.UpdatedAt = s.clock.Now()
				next.LastUpdatedBy = &editor

				written, err := s.repo.UpdateIfVersion(txCtx, tx, next, current.Version)
				if err != nil {
					if db.IsDuplicateKeyErr(err) {
						return domain.ErrDuplicateKey
					}
					return err
				}
				if !written {
					return errVersionMoved
				}

				diff := changedFields(current, next)
				if err := s.audit.Record(txCtx, tx, auditdomain.RecordRequest{
					ParameterID:   next.ID,
					ParameterKey:  next.Key,
					Action:        m.action,
					Version:       next.Version,
					ChangedFields: diff,
					Metadata: map[string]any{
						"previous_version": current.Version,
						"forced":           mismatch,
					},
				}); err != nil {
					return err
				}

				committed, changed, forced = next, diff, mismatch
				return nil
			})

			if errors.Is(err, errVersionMoved) {
				if attempt < maxAttempts {
					s.log.Debug("parameter changed between read and write, re-reading",
						zap.String("parameter_id", id.String()),
						zap.Int("attempt", attempt),
					)
					continue
				}
				return domain.ErrConcurrentWriteLimit
			}
			return err
		}
	})

	if errors.Is(err, errStaleVersion) {
		return nil, s.conflict(ctx, m, stale)
	}
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, m.event, committed, changed, forced)
	s.metrics.RecordMutation(ctx, m.operation, forced)
	if forced {
		s.log.Info("version check bypassed by force update",
			zap.String("parameter_id", committed.ID.String()),
			zap.Int64("version", committed.Version),
			zap.String("editor_id", actor.EditorID),
		)
	}
	return committed, nil
}

// conflict builds the caller-facing conflict report. It runs after the
// transaction rolled back, so the identity lookup never holds a row lock.
func (s *Service) conflict(ctx context.Context, m mutation, stored *domain.Parameter) error {
	lastModifiedBy := ""
	if stored.LastUpdatedBy != nil {
		lastModifiedBy = *stored.LastUpdatedBy
		if s.identity != nil {
			lastModifiedBy = s.identity.Resolve(ctx, lastModifiedBy)
		}
	}

	s.metrics.RecordConflict(ctx, m.operation)
	return &domain.ConflictError{
		CurrentVersion:    stored.Version,
		ProvidedVersion:   *m.guard.LastKnownVersion,
		LastModifiedBy:    lastModifiedBy,
		LastModifiedAt:    stored.UpdatedAt,
		ConflictingFields: m.attempted.conflictingFields(stored),
	}
}

// withTimeout bounds fn by the transaction timeout and reports an expired
// deadline as ErrTransactionTimeout.
func (s *Service) withTimeout(ctx context.Context, operation string, fn func(context.Context) error) error {
	txCtx, cancel := context.WithTimeout(ctx, s.policy.Get().Transaction.Timeout)
	defer cancel()

	err := fn(txCtx)
	if err == nil || isOutcome(err) {
		return err
	}
	if db.IsTimeoutErr(err) || errors.Is(txCtx.Err(), context.DeadlineExceeded) {
		s.metrics.RecordTransactionTimeout(ctx, operation)
		s.log.Warn("transaction timed out",
			zap.String("operation", operation),
			zap.Duration("timeout", s.policy.Get().Transaction.Timeout),
			zap.Error(err),
		)
		return domain.ErrTransactionTimeout
	}
	return err
}

// isOutcome reports errors that are decided by the data, not by the deadline.
func isOutcome(err error) bool {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr),
		errors.Is(err, errStaleVersion),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrDuplicateKey),
		errors.Is(err, domain.ErrConcurrentWriteLimit):
		return true
	default:
		return false
	}
}

// changedFields is the actual difference between two committed states.
func changedFields(before, after *domain.Parameter) []string {
	fields := []string{}
	if before.Key != after.Key {
		fields = append(fields, "key")
	}
	if !override.ValuesEqual(before.DefaultValue(), after.DefaultValue()) {
		fields = append(fields, "value")
	}
	if !equalStrings(before.Description, after.Description) {
		fields = append(fields, "description")
	}
	if before.IsActive != after.IsActive {
		fields = append(fields, "isActive")
	}

	prev := before.CountryOverrides()
	next := after.CountryOverrides()
	codes := map[string]struct{}{}
	for code := range prev.Country {
		codes[code] = struct{}{}
	}
	for code := range next.Country {
		codes[code] = struct{}{}
	}
	sorted := make([]string, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Strings(sorted)
	for _, code := range sorted {
		a, inPrev := prev.Lookup(code)
		b, inNext := next.Lookup(code)
		if inPrev != inNext || !override.ValuesEqual(a, b) {
			fields = append(fields, overrideField(code))
		}
	}
	return fields
}

func equalStrings(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
