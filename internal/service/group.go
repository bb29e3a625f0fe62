package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sakif/sharedlist/internal/apperror"
	"github.com/sakif/sharedlist/internal/metrics"
	"github.com/sakif/sharedlist/internal/model"
	"github.com/sakif/sharedlist/internal/repository"
)

const (
	MaxGroupNameLength     = 64
	CodeLength             = 6
	DefaultMaxCodeAttempts = 10
)

var errCodeSpaceExhausted = errors.New("could not allocate a join code")

// CodeGenerator returns a candidate join code. It does not need to be unique;
// GroupService checks every candidate against the store.
type CodeGenerator func() string

// RandomCode draws a six-digit code uniformly from 100000..999999.
func RandomCode() string {
	return strconv.Itoa(100000 + rand.IntN(900000))
}

// JoinResult describes a successful join. AlreadyMember is informational:
// joining a group twice is not an error and does not add a second row.
type JoinResult struct {
	Group         *model.Group
	AlreadyMember bool
}

// GroupService allocates join codes and manages membership.
type GroupService struct {
	repo         repository.GroupRepository
	logger       *slog.Logger
	generate     CodeGenerator
	codeAttempts int
	metrics      *metrics.Metrics
}

type GroupOption func(*GroupService)

// WithCodeGenerator replaces RandomCode. Tests use it to script collisions.
func WithCodeGenerator(gen CodeGenerator) GroupOption {
	return func(s *GroupService) { s.generate = gen }
}

// WithMaxCodeAttempts bounds how many candidate codes Create tries.
func WithMaxCodeAttempts(n int) GroupOption {
	return func(s *GroupService) {
		if n > 0 {
			s.codeAttempts = n
		}
	}
}

// WithMetrics counts created groups and discarded code candidates.
func WithMetrics(m *metrics.Metrics) GroupOption {
	return func(s *GroupService) { s.metrics = m }
}

func NewGroupService(repo repository.GroupRepository, logger *slog.Logger, opts ...GroupOption) *GroupService {
	s := &GroupService{
		repo:         repo,
		logger:       logger,
		generate:     RandomCode,
		codeAttempts: DefaultMaxCodeAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create makes a new group named name with creator as its first member.
//
// CODE ALLOCATION: generate, check, insert, retry.
// A candidate that already exists is discarded before we try to insert it.
// The check alone is not enough: two creators can draw the same free code at
// the same moment. The store's primary key settles that race, and the loser
// gets apperror.ErrConflict, which we treat exactly like a failed check.
// Two groups must never share a code, because they would share a list.
func (s *GroupService) Create(ctx context.Context, creator, name string) (*model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "group name is required")
	}
	if utf8.RuneCountInString(name) > MaxGroupNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("group name must be %d characters or less", MaxGroupNameLength))
	}
	if creator == "" {
		return nil, apperror.ValidationFailed("user", "user id is required")
	}

	for attempt := 1; attempt <= s.codeAttempts; attempt++ {
		code := s.generate()

		_, err := s.repo.GetGroup(ctx, code)
		switch {
		case err == nil:
			s.logger.Debug("join code taken, retrying",
				slog.String("code", code),
				slog.Int("attempt", attempt),
			)
			s.metrics.CodeRetry()
			continue
		case !errors.Is(err, apperror.ErrNotFound):
			return nil, s.storeError("checking join code", err)
		}

		group := &model.Group{Code: code, Name: name, CreatedBy: creator}
		err = s.repo.CreateGroup(ctx, group)
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Warn("join code claimed concurrently, retrying",
				slog.String("code", code),
				slog.Int("attempt", attempt),
			)
			s.metrics.CodeRetry()
			continue
		}
		if err != nil {
			return nil, s.storeError("creating group", err)
		}

		s.metrics.GroupCreated()
		s.logger.Info("group created",
			slog.String("code", group.Code),
			slog.String("name", group.Name),
			slog.String("user_id", creator),
		)
		return group, nil
	}

	s.logger.Error("join code allocation exhausted", slog.Int("attempts", s.codeAttempts))
	return nil, apperror.Unavailable("allocating a join code", errCodeSpaceExhausted)
}

// ValidCode reports whether code has the shape of a join code.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Join adds user to the group with code. Unknown codes return
// apperror.ErrNotFound; malformed ones return apperror.ErrValidation.
func (s *GroupService) Join(ctx context.Context, user, code string) (JoinResult, error) {
	code = strings.TrimSpace(code)
	if !ValidCode(code) {
		return JoinResult{}, apperror.ValidationFailed("code",
			fmt.Sprintf("a join code is %d digits", CodeLength))
	}

	group, err := s.repo.GetGroup(ctx, code)
	if err != nil {
		return JoinResult{}, s.storeError("looking up group", err)
	}

	added, err := s.repo.AddMember(ctx, code, user)
	if err != nil {
		return JoinResult{}, s.storeError("adding member", err)
	}

	if added {
		s.logger.Info("group joined",
			slog.String("code", code),
			slog.String("user_id", user),
		)
	}
	return JoinResult{Group: group, AlreadyMember: !added}, nil
}

// Memberships returns user's groups in the order they were joined.
func (s *GroupService) Memberships(ctx context.Context, user string) ([]model.Membership, error) {
	ms, err := s.repo.Memberships(ctx, user)
	if err != nil {
		return nil, s.storeError("listing groups", err)
	}
	return ms, nil
}

func (s *GroupService) IsMember(ctx context.Context, user, code string) (bool, error) {
	ok, err := s.repo.IsMember(ctx, code, user)
	if err != nil {
		return false, s.storeError("checking membership", err)
	}
	return ok, nil
}

// ResolveName returns the group's display name. Unknown groups and groups
// without a name resolve to the code itself.
func (s *GroupService) ResolveName(ctx context.Context, code string) (string, error) {
	group, err := s.repo.GetGroup(ctx, code)
	if errors.Is(err, apperror.ErrNotFound) {
		return code, nil
	}
	if err != nil {
		return code, s.storeError("resolving group name", err)
	}
	return group.DisplayName(), nil
}

func (s *GroupService) storeError(op string, err error) error {
	if apperror.Is(err) {
		return err
	}
	s.logger.Error("group store failure",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return apperror.Unavailable(op, err)
}
