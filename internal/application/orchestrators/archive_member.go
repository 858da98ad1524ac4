package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ArchiveMemberInput carries input for the archive orchestrator.
type ArchiveMemberInput struct {
	MemberID string
}

// ArchiveMemberDeps holds dependencies for ArchiveMember.
type ArchiveMemberDeps struct {
	MemberStore       MemberStore
	SubscriptionStore SubscriptionStore
	Now               func() time.Time
	GraceDays         int
}

// ExecuteArchiveMember archives a member.
// PRE: MemberID must be non-empty; member must exist and not be archived
// POST: Member status set to archived
// INVARIANT: A member with a subscription active or in grace as of Now cannot
// be archived; expired ones the sweep has not reached yet do not block
func ExecuteArchiveMember(ctx context.Context, input ArchiveMemberInput, deps ArchiveMemberDeps) error {
	if input.MemberID == "" {
		return invalid(errors.New("member ID is required"))
	}

	m, err := deps.MemberStore.GetByID(ctx, input.MemberID)
	if err != nil {
		return err
	}

	if err := ensureNoCurrentSubscription(ctx, deps.SubscriptionStore, m.ID, "", deps.Now().UTC(), deps.GraceDays); err != nil {
		return err
	}

	if err := m.Archive(); err != nil {
		return err
	}
	if err := deps.MemberStore.Save(ctx, m); err != nil {
		return err
	}

	slog.Info("member_event", "event", "member_archived", "member_id", input.MemberID)
	return nil
}

// RestoreMemberInput carries input for the restore orchestrator.
type RestoreMemberInput struct {
	MemberID string
}

// RestoreMemberDeps holds dependencies for RestoreMember.
type RestoreMemberDeps struct {
	MemberStore MemberStore
}

// ExecuteRestoreMember restores an archived member to active status.
// PRE: MemberID must be non-empty; member must exist and be archived
// POST: Member status set to active
func ExecuteRestoreMember(ctx context.Context, input RestoreMemberInput, deps RestoreMemberDeps) error {
	if input.MemberID == "" {
		return invalid(errors.New("member ID is required"))
	}

	m, err := deps.MemberStore.GetByID(ctx, input.MemberID)
	if err != nil {
		return err
	}
	if err := m.Restore(); err != nil {
		return err
	}
	if err := deps.MemberStore.Save(ctx, m); err != nil {
		return err
	}

	slog.Info("member_event", "event", "member_restored", "member_id", input.MemberID)
	return nil
}
