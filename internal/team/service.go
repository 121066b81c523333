// Package team はチームとメンバー管理のドメインロジックを提供する。
package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/repository"
	"github.com/hitoshi/meishi/internal/security"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 1000
	maxRoleLength        = 50
)

// AddMemberInput はメンバー追加の入力値。
type AddMemberInput struct {
	Email       string
	Role        string
	Permissions model.Permissions
}

// Service はチーム管理のサービス層。
type Service struct {
	teams     repository.TeamRepository
	users     repository.UserRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(teams repository.TeamRepository, users repository.UserRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		teams:     teams,
		users:     users,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// ListMemberships はユーザーが所属するチームの一覧を返す。
func (s *Service) ListMemberships(ctx context.Context, userID string) ([]model.MembershipWithTeam, error) {
	ms, err := s.teams.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("所属チーム一覧の取得に失敗しました: %w", err)
	}
	return ms, nil
}

// Create はチームを作成し、作成者を全権限を持つadminとして所属させる。
func (s *Service) Create(ctx context.Context, userID, name, description string) (*model.Team, *model.Membership, error) {
	name = s.sanitizer.SanitizeText(name)
	if name == "" {
		return nil, nil, model.NewInvalidInputError("team name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, nil, model.NewInvalidInputError("team name is too long")
	}
	var desc *string
	if d := s.sanitizer.SanitizeText(description); d != "" {
		if utf8.RuneCountInString(d) > maxDescriptionLength {
			return nil, nil, model.NewInvalidInputError("description is too long")
		}
		desc = &d
	}

	now := s.now()
	team := &model.Team{
		ID:          uuid.New().String(),
		Name:        name,
		Description: desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	membership := &model.Membership{
		ID:          uuid.New().String(),
		TeamID:      team.ID,
		UserID:      userID,
		Role:        model.RoleAdmin,
		Permissions: model.FullPermissions(),
		CreatedAt:   now,
	}
	if err := s.teams.CreateWithMembership(ctx, team, membership); err != nil {
		return nil, nil, fmt.Errorf("チームの作成に失敗しました: %w", err)
	}

	slog.Info("team created", slog.String("team_id", team.ID), slog.String("user_id", userID))
	return team, membership, nil
}

// ListMembers はチームのメンバー一覧を返す。呼び出し元がチームに所属している必要がある。
func (s *Service) ListMembers(ctx context.Context, userID, teamID string) ([]model.MembershipWithUser, error) {
	if _, err := s.callerMembership(ctx, userID, teamID); err != nil {
		return nil, err
	}

	members, err := s.teams.ListMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗しました: %w", err)
	}
	return members, nil
}

// AddMember はメールアドレスで指定したユーザーをチームに追加する。
// 呼び出し元のmanageTeam権限を最初に検証し、権限が無い場合は何も書き込まない。
func (s *Service) AddMember(ctx context.Context, userID, teamID string, in AddMemberInput) (*model.MembershipWithUser, error) {
	caller, err := s.callerMembership(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	if !caller.Permissions.ManageTeam {
		slog.Warn("add member denied",
			slog.String("team_id", teamID),
			slog.String("user_id", userID),
		)
		return nil, model.NewPermissionDeniedError("manageTeam permission is required")
	}

	email := strings.TrimSpace(in.Email)
	role := s.sanitizer.SanitizeText(in.Role)
	if email == "" || role == "" {
		return nil, model.NewInvalidInputError("email and role are required")
	}
	if utf8.RuneCountInString(role) > maxRoleLength {
		return nil, model.NewInvalidInputError("role is too long")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	membership := &model.Membership{
		ID:          uuid.New().String(),
		TeamID:      teamID,
		UserID:      user.ID,
		Role:        role,
		Permissions: in.Permissions,
		CreatedAt:   s.now(),
	}
	if err := s.teams.AddMember(ctx, membership); err != nil {
		if errors.Is(err, repository.ErrDuplicateMembership) {
			return nil, model.NewDuplicateMembershipError()
		}
		return nil, fmt.Errorf("メンバーの追加に失敗しました: %w", err)
	}

	slog.Info("team member added",
		slog.String("team_id", teamID),
		slog.String("member_user_id", user.ID),
		slog.String("by_user_id", userID),
	)
	return &model.MembershipWithUser{
		Membership: *membership,
		User: model.UserSummary{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Image: user.Image,
		},
	}, nil
}

// callerMembership は呼び出し元の所属を返す。
// チームが存在しない場合はTEAM_NOT_FOUND、所属していない場合はPERMISSION_DENIEDを返す。
func (s *Service) callerMembership(ctx context.Context, userID, teamID string) (*model.Membership, error) {
	t, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("チームの取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTeamNotFoundError(teamID)
	}

	m, err := s.teams.FindMembership(ctx, teamID, userID)
	if err != nil {
		return nil, fmt.Errorf("所属の取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewPermissionDeniedError("not a member of this team")
	}
	return m, nil
}
