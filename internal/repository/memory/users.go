package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/repository"
)

// UserRepo はUserRepositoryのインメモリ実装。
type UserRepo struct{ s *Store }

// IdentityRepo はIdentityRepositoryのインメモリ実装。
type IdentityRepo struct{ s *Store }

// SessionRepo はSessionRepositoryのインメモリ実装。
type SessionRepo struct{ s *Store }

func (s *Store) Users() *UserRepo           { return &UserRepo{s} }
func (s *Store) Identities() *IdentityRepo { return &IdentityRepo{s} }
func (s *Store) Sessions() *SessionRepo     { return &SessionRepo{s} }

func (r *UserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.insertLocked(user)
}

func (r *UserRepo) insertLocked(user *model.User) error {
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *UserRepo) CreateWithIdentity(_ context.Context, user *model.User, identity *model.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, i := range r.s.identities {
		if i.Provider == identity.Provider && i.ProviderUserID == identity.ProviderUserID {
			return repository.ErrIdentityLinked
		}
	}
	if err := r.insertLocked(user); err != nil {
		return err
	}
	cp := *identity
	r.s.identities[identity.ID] = &cp
	return nil
}

func (r *UserRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	delete(r.s.users, id)
	for k, i := range r.s.identities {
		if i.UserID == id {
			delete(r.s.identities, k)
		}
	}
	for k, sess := range r.s.sessions {
		if sess.UserID == id {
			delete(r.s.sessions, k)
		}
	}
	for k, c := range r.s.cards {
		if c.UserID == id {
			r.s.deleteCardLocked(k)
		}
	}
	for k, m := range r.s.members {
		if m.UserID == id {
			delete(r.s.members, k)
		}
	}
	return nil
}

func (r *IdentityRepo) FindByProviderAndProviderUserID(_ context.Context, provider, providerUserID string) (*model.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, i := range r.s.identities {
		if i.Provider == provider && i.ProviderUserID == providerUserID {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *SessionRepo) Create(_ context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *session
	r.s.sessions[session.ID] = &cp
	return nil
}

func (r *SessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || !sess.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (r *SessionRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r *SessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for k, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, k)
		}
	}
	return nil
}

func (r *SessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	now := time.Now()
	for k, sess := range r.s.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(r.s.sessions, k)
			n++
		}
	}
	return n, nil
}

var (
	_ repository.UserRepository     = (*UserRepo)(nil)
	_ repository.IdentityRepository = (*IdentityRepo)(nil)
	_ repository.SessionRepository  = (*SessionRepo)(nil)
)
