package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gymdesk/internal/adapters/storage"
	"gymdesk/internal/domain/member"
)

// RegisterMemberInput carries input for the orchestrator.
type RegisterMemberInput struct {
	Name  string
	Email string
}

// RegisterMemberDeps holds dependencies for RegisterMember.
type RegisterMemberDeps struct {
	MemberStore MemberStore
	GenerateID  func() string
	Now         func() time.Time
}

// ExecuteRegisterMember creates an active member.
// PRE: Valid email, non-empty name
// POST: Member created with ID, Status=active
// INVARIANT: Email is unique (checked here and enforced by the store)
func ExecuteRegisterMember(ctx context.Context, input RegisterMemberInput, deps RegisterMemberDeps) (member.Member, error) {
	m := member.Member{
		ID:        deps.GenerateID(),
		Name:      strings.TrimSpace(input.Name),
		Email:     member.NormalizeEmail(input.Email),
		Status:    member.StatusActive,
		CreatedAt: deps.Now(),
	}
	if err := m.Validate(); err != nil {
		return member.Member{}, invalid(err)
	}

	if _, err := deps.MemberStore.GetByEmail(ctx, m.Email); err == nil {
		return member.Member{}, member.ErrDuplicateEmail
	} else if !errors.Is(err, storage.ErrNotFound) {
		return member.Member{}, err
	}

	if err := deps.MemberStore.Save(ctx, m); err != nil {
		return member.Member{}, err
	}

	slog.Info("member_event", "event", "member_registered", "member_id", m.ID)
	return m, nil
}
