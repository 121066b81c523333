package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/team"
)

// TeamServiceInterface はチームハンドラーが必要とするサービスインターフェース。
type TeamServiceInterface interface {
	ListMemberships(ctx context.Context, userID string) ([]model.MembershipWithTeam, error)
	Create(ctx context.Context, userID, name, description string) (*model.Team, *model.Membership, error)
	// ListMembers は呼び出し元がチームのメンバーである場合のみメンバー一覧を返す。
	ListMembers(ctx context.Context, userID, teamID string) ([]model.MembershipWithUser, error)
	// AddMember は呼び出し元がmanageTeam権限を持つ場合のみメンバーを追加する。
	AddMember(ctx context.Context, userID, teamID string, in team.AddMemberInput) (*model.MembershipWithUser, error)
}

// TeamHandler はチーム管理のHTTPハンドラー。
type TeamHandler struct {
	service TeamServiceInterface
}

// NewTeamHandler はTeamHandlerを生成する。
func NewTeamHandler(service TeamServiceInterface) *TeamHandler {
	return &TeamHandler{service: service}
}

type createTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type permissionsPayload struct {
	CreateCards bool `json:"createCards"`
	EditCards   bool `json:"editCards"`
	DeleteCards bool `json:"deleteCards"`
	ManageTeam  bool `json:"manageTeam"`
}

type addMemberRequest struct {
	Email       string             `json:"email"`
	Role        string             `json:"role"`
	Permissions permissionsPayload `json:"permissions"`
}

type teamResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type userSummaryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

type membershipResponse struct {
	ID          string               `json:"id"`
	TeamID      string               `json:"teamId"`
	UserID      string               `json:"userId"`
	Role        string               `json:"role"`
	Permissions permissionsPayload   `json:"permissions"`
	CreatedAt   time.Time            `json:"createdAt"`
	Team        *teamResponse        `json:"team,omitempty"`
	User        *userSummaryResponse `json:"user,omitempty"`
}

func toTeamResponse(t *model.Team) teamResponse {
	return teamResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toMembershipResponse(m *model.Membership) membershipResponse {
	return membershipResponse{
		ID:     m.ID,
		TeamID: m.TeamID,
		UserID: m.UserID,
		Role:   m.Role,
		Permissions: permissionsPayload{
			CreateCards: m.Permissions.CreateCards,
			EditCards:   m.Permissions.EditCards,
			DeleteCards: m.Permissions.DeleteCards,
			ManageTeam:  m.Permissions.ManageTeam,
		},
		CreatedAt: m.CreatedAt,
	}
}

func toMemberResponse(m *model.MembershipWithUser) membershipResponse {
	resp := toMembershipResponse(&m.Membership)
	resp.User = &userSummaryResponse{
		ID:    m.User.ID,
		Name:  m.User.Name,
		Email: m.User.Email,
		Image: m.User.Image,
	}
	return resp
}

// List は呼び出し元が所属するチームの一覧を返す。
// GET /api/teams
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	memberships, err := h.service.ListMemberships(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]membershipResponse, len(memberships))
	for i := range memberships {
		resp[i] = toMembershipResponse(&memberships[i].Membership)
		t := toTeamResponse(&memberships[i].Team)
		resp[i].Team = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create はチームを作成する。作成者は全権限を持つadminとして登録される。
// POST /api/teams
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createTeamRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	t, membership, err := h.service.Create(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		teamResponse
		Members []membershipResponse `json:"members"`
	}{
		teamResponse: toTeamResponse(t),
		Members:      []membershipResponse{toMembershipResponse(membership)},
	})
}

// ListMembers はチームのメンバー一覧を返す。
// GET /api/teams/{id}/members
func (h *TeamHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]membershipResponse, len(members))
	for i := range members {
		resp[i] = toMemberResponse(&members[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddMember はメールアドレスで指定したユーザーをチームに追加する。
// POST /api/teams/{id}/members
func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addMemberRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	member, err := h.service.AddMember(r.Context(), userID, chi.URLParam(r, "id"), team.AddMemberInput{
		Email: req.Email,
		Role:  req.Role,
		Permissions: model.Permissions{
			CreateCards: req.Permissions.CreateCards,
			EditCards:   req.Permissions.EditCards,
			DeleteCards: req.Permissions.DeleteCards,
			ManageTeam:  req.Permissions.ManageTeam,
		},
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberResponse(member))
}
