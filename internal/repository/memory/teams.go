package memory

import (
	"context"
	"sort"

	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/repository"
)

// TeamRepo はTeamRepositoryのインメモリ実装。
type TeamRepo struct{ s *Store }

func (s *Store) Teams() *TeamRepo { return &TeamRepo{s} }

func memberKey(teamID, userID string) string { return teamID + "/" + userID }

func (r *TeamRepo) CreateWithMembership(_ context.Context, team *model.Team, membership *model.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *team
	r.s.teams[team.ID] = &cp
	mcp := *membership
	r.s.members[memberKey(membership.TeamID, membership.UserID)] = &mcp
	return nil
}

func (r *TeamRepo) FindByID(_ context.Context, id string) (*model.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.teams[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *TeamRepo) FindMembership(_ context.Context, teamID, userID string) (*model.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.members[memberKey(teamID, userID)]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r *TeamRepo) ListByUserID(_ context.Context, userID string) ([]model.MembershipWithTeam, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.MembershipWithTeam{}
	for _, m := range r.s.members {
		if m.UserID != userID {
			continue
		}
		t, ok := r.s.teams[m.TeamID]
		if !ok {
			continue
		}
		out = append(out, model.MembershipWithTeam{Membership: *m, Team: *t})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Team.CreatedAt.Equal(out[j].Team.CreatedAt) {
			return out[i].Team.CreatedAt.After(out[j].Team.CreatedAt)
		}
		return out[i].Team.ID < out[j].Team.ID
	})
	return out, nil
}

func (r *TeamRepo) ListMembers(_ context.Context, teamID string) ([]model.MembershipWithUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.MembershipWithUser{}
	for _, m := range r.s.members {
		if m.TeamID != teamID {
			continue
		}
		u, ok := r.s.users[m.UserID]
		if !ok {
			continue
		}
		out = append(out, model.MembershipWithUser{
			Membership: *m,
			User:       model.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *TeamRepo) AddMember(_ context.Context, membership *model.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := memberKey(membership.TeamID, membership.UserID)
	if _, ok := r.s.members[key]; ok {
		return repository.ErrDuplicateMembership
	}
	cp := *membership
	r.s.members[key] = &cp
	return nil
}

var _ repository.TeamRepository = (*TeamRepo)(nil)
