package session

import (
	"context"
	"encoding/json"
	"fmt"

	"portalguard"
)

// Restore loads the persisted session. A stored session is exposed right
// away as Restoring while it is revalidated in the background; otherwise
// the session becomes Unauthenticated. Restore only acts once: later calls
// return the current state.
func (s *Session) Restore(ctx context.Context) State {
	s.restoreMu.Lock()
	defer s.restoreMu.Unlock()

	if st := s.State(); st != Unresolved {
		return st
	}

	entry, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("failed to load session", "error", err)
		entry = portalguard.SessionEntry{}
	}
	p := s.principalFromEntry(entry)

	s.mu.Lock()
	if s.state != Unresolved {
		// a login or logout won the race
		st := s.state
		s.mu.Unlock()
		return st
	}
	if p == nil {
		s.setLocked(Unauthenticated, nil, false)
		epoch := s.epoch
		s.mu.Unlock()
		s.flush()
		if !entry.IsEmpty() {
			// a user slot without tokens cannot be revived
			s.clearStore(ctx, epoch)
		}
		return Unauthenticated
	}
	s.setLocked(Restoring, p, false)
	life, epoch := s.life, s.epoch
	s.mu.Unlock()
	s.flush()

	s.logger.Debug("session restored", "role_key", p.RoleKey, "state", Restoring)
	go s.revalidate(life, epoch)
	return Restoring
}

func (s *Session) principalFromEntry(entry portalguard.SessionEntry) *portalguard.Principal {
	if entry.AccessToken == "" && entry.RefreshToken == "" {
		return nil
	}
	if len(entry.User) > 0 {
		var u portalguard.User
		err := json.Unmarshal(entry.User, &u)
		if err == nil {
			return portalguard.NewPrincipal(u, entry.AccessToken, entry.RefreshToken)
		}
		s.logger.Warn("ignoring unreadable user slot", "error", err)
	}
	return &portalguard.Principal{AccessToken: entry.AccessToken, RefreshToken: entry.RefreshToken}
}

// revalidate confirms the restored principal. When the identity API does not
// confirm it, one refresh decides whether the session survives.
func (s *Session) revalidate(ctx context.Context, epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.principal == nil {
		s.mu.Unlock()
		return
	}
	access := s.principal.AccessToken
	s.mu.Unlock()

	err := fmt.Errorf("%w: no access token", portalguard.ErrTokenRejected)
	var user *portalguard.User
	if access != "" {
		user, err = s.currentUser(ctx, access)
	}
	if err == nil {
		s.confirm(ctx, epoch, user)
		return
	}
	if ctx.Err() != nil {
		return
	}

	s.logger.Warn("session revalidation failed, refreshing", "error", err)
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("session could not be restored", "error", err)
		return
	}

	// a token-only entry has no role yet; one lookup with the new token
	s.mu.Lock()
	if s.epoch != epoch || s.principal == nil || s.principal.RoleKey != "" {
		s.mu.Unlock()
		return
	}
	access = s.principal.AccessToken
	s.mu.Unlock()

	if user, err = s.currentUser(ctx, access); err != nil {
		s.logger.Warn("failed to load user after refresh", "error", err)
		return
	}
	s.confirm(ctx, epoch, user)
}

// currentUser asks the identity API who owns access. An answer without a
// user counts as a rejection.
func (s *Session) currentUser(ctx context.Context, access string) (*portalguard.User, error) {
	user, err := s.api.CurrentUser(ctx, access)
	if err == nil && user == nil {
		err = fmt.Errorf("%w: identity API returned no user", portalguard.ErrTokenRejected)
	}
	return user, err
}

// confirm replaces the profile with user, keeping the current tokens.
func (s *Session) confirm(ctx context.Context, epoch uint64, user *portalguard.User) {
	blob, err := json.Marshal(user)
	if err != nil {
		s.logger.Warn("failed to encode user", "error", err)
	}

	s.mu.Lock()
	if s.epoch != epoch || s.principal == nil {
		s.mu.Unlock()
		return
	}
	p := portalguard.NewPrincipal(*user, s.principal.AccessToken, s.principal.RefreshToken)
	s.setLocked(Authenticated, p, false)
	s.scheduleLocked(epoch, p.AccessToken)
	s.mu.Unlock()
	s.flush()

	if len(blob) > 0 {
		s.persist(ctx, epoch, portalguard.SessionEntry{User: blob}, false)
	}
}

// Login authenticates against the identity API and replaces any current
// session. Identity errors are returned as is and leave the session
// untouched. A Logout that lands while the call is in flight wins, and
// Login then returns ErrSessionClosed.
func (s *Session) Login(ctx context.Context, username, password string) (*portalguard.Principal, error) {
	creds := portalguard.PasswordCredentials{Username: username, Password: password}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	logouts := s.logouts
	s.mu.Unlock()

	res, err := s.api.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	blob, err := json.Marshal(res.User)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}
	p := portalguard.NewPrincipal(res.User, res.AccessToken, res.RefreshToken)

	s.mu.Lock()
	if s.logouts != logouts {
		s.mu.Unlock()
		return nil, portalguard.ErrSessionClosed
	}
	s.resetLocked()
	s.setLocked(Authenticated, p, false)
	epoch := s.epoch
	s.scheduleLocked(epoch, p.AccessToken)
	s.mu.Unlock()
	s.flush()

	s.logger.Info("logged in", "username", p.Profile.Username, "role_key", p.RoleKey)
	s.persist(ctx, epoch, portalguard.SessionEntry{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         blob,
	}, true)
	return p.Clone(), nil
}

// Logout ends the session. Local state is cleared and announced first; the
// remote logout is best effort and its failure is only logged.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	s.logouts++
	var access string
	if s.principal != nil {
		access = s.principal.AccessToken
	}
	s.endLocked()
	epoch := s.epoch
	s.mu.Unlock()
	s.flush()

	ctx = context.WithoutCancel(ctx)
	if access != "" {
		if err := s.api.Logout(ctx, access); err != nil {
			s.logger.Warn("remote logout failed", "error", err)
		}
	}
	s.clearStore(ctx, epoch)
}

// Expire ends the session after an authorization failure that could not be
// recovered, such as a request still rejected after a refresh.
func (s *Session) Expire(ctx context.Context, cause error) {
	s.mu.Lock()
	if !s.state.HasPrincipal() {
		s.mu.Unlock()
		return
	}
	s.endLocked()
	epoch := s.epoch
	s.mu.Unlock()
	s.flush()

	s.logger.Warn("session expired", "error", cause)
	s.clearStore(context.WithoutCancel(ctx), epoch)
}
