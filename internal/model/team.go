package model

import "time"

// RoleAdmin はチーム作成者に付与されるロール。
const RoleAdmin = "admin"

// Team はユーザーの集まりを表す。
type Team struct {
	ID          string
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permissions はメンバーごとのカード操作・チーム管理権限。
type Permissions struct {
	CreateCards bool
	EditCards   bool
	DeleteCards bool
	ManageTeam  bool
}

// FullPermissions は全権限を持つPermissionsを返す。
func FullPermissions() Permissions {
	return Permissions{
		CreateCards: true,
		EditCards:   true,
		DeleteCards: true,
		ManageTeam:  true,
	}
}

// Membership はユーザーとチームの所属関係を表す。
// (team_id, user_id) の組は一意。
type Membership struct {
	ID          string
	TeamID      string
	UserID      string
	Role        string
	Permissions Permissions
	CreatedAt   time.Time
}

// MembershipWithTeam は所属チーム一覧で使用する、チーム情報付きの所属関係。
type MembershipWithTeam struct {
	Membership
	Team Team
}

// MembershipWithUser はメンバー一覧で使用する、ユーザー情報付きの所属関係。
type MembershipWithUser struct {
	Membership
	User UserSummary
}
