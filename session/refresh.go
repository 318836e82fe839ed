package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"portalguard"
	"portalguard/jwt"
)

// refreshCall is the in-flight refresh every concurrent caller waits on.
type refreshCall struct {
	done    chan struct{}
	once    sync.Once
	token   string
	err     error
	waiters int
}

func (c *refreshCall) finish(token string, err error) {
	c.once.Do(func() {
		c.token, c.err = token, err
		close(c.done)
	})
}

func (c *refreshCall) wait(ctx context.Context) (string, error) {
	select {
	case <-c.done:
		return c.token, c.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Refresh exchanges the refresh token for a new access token and returns
// it. Concurrent calls share one request. A network failure is retried
// once; any other failure ends the session with ErrRefreshFailed.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	if call := s.inflight; call != nil {
		call.waiters++
		s.mu.Unlock()
		return call.wait(ctx)
	}
	if s.principal == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %w", portalguard.ErrRefreshFailed, portalguard.ErrNoSession)
	}
	call := &refreshCall{done: make(chan struct{}), waiters: 1}
	s.inflight = call
	life, epoch, refreshToken := s.life, s.epoch, s.principal.RefreshToken
	s.mu.Unlock()

	go s.runRefresh(life, epoch, refreshToken, call)
	return call.wait(ctx)
}

func (s *Session) runRefresh(ctx context.Context, epoch uint64, refreshToken string, call *refreshCall) {
	pair, err := s.exchange(ctx, refreshToken)

	s.mu.Lock()
	if s.epoch != epoch || s.inflight != call {
		s.mu.Unlock()
		call.finish("", portalguard.ErrSessionClosed)
		return
	}
	s.inflight = nil

	if err != nil {
		s.endLocked()
		ended := s.epoch
		s.mu.Unlock()
		s.flush()

		s.logger.Warn("token refresh failed, session ended", "error", err)
		s.clearStore(context.WithoutCancel(ctx), ended)
		if !errors.Is(err, portalguard.ErrRefreshFailed) {
			err = fmt.Errorf("%w: %w", portalguard.ErrRefreshFailed, err)
		}
		call.finish("", err)
		return
	}

	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	p := s.principal.Clone()
	p.AccessToken = pair.AccessToken
	p.RefreshToken = pair.RefreshToken
	state, degraded := s.state, s.degraded
	if state == Restoring {
		state, degraded = Authenticated, true
	}
	s.setLocked(state, p, degraded)
	s.scheduleLocked(epoch, p.AccessToken)
	s.mu.Unlock()
	s.flush()

	s.persist(ctx, epoch, portalguard.SessionEntry{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, false)
	call.finish(pair.AccessToken, nil)
}

func (s *Session) exchange(ctx context.Context, refreshToken string) (*portalguard.TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", portalguard.ErrRefreshFailed)
	}
	pair, err := s.api.Refresh(ctx, refreshToken)
	if errors.Is(err, portalguard.ErrNetwork) && ctx.Err() == nil {
		s.logger.Warn("token refresh failed, retrying", "error", err)
		pair, err = s.api.Refresh(ctx, refreshToken)
	}
	if err != nil {
		return nil, err
	}
	if pair == nil || pair.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", portalguard.ErrRefreshFailed)
	}
	out := *pair
	return &out, nil
}

// scheduleLocked arms a refresh refreshLead before the access token expires.
func (s *Session) scheduleLocked(epoch uint64, access string) {
	s.stopTimerLocked()
	if s.refreshLead <= 0 {
		return
	}
	exp, ok := jwt.ExpiresAt(access)
	if !ok {
		return
	}
	delay := time.Until(exp) - s.refreshLead
	if delay < s.minRefreshDelay {
		delay = s.minRefreshDelay
	}
	s.timer = time.AfterFunc(delay, func() {
		if s.currentEpoch() != epoch {
			return
		}
		if _, err := s.Refresh(context.Background()); err != nil {
			s.logger.Warn("scheduled token refresh failed", "error", err)
		}
	})
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) refreshWaiters() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil {
		return 0
	}
	return s.inflight.waiters
}
