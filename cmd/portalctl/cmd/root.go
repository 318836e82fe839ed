// Package cmd implements the portalctl commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"portalguard"
	"portalguard/config"
	"portalguard/identity"
	"portalguard/rbac"
	"portalguard/session"
	"portalguard/store"
)

const restoreTimeout = 15 * time.Second

type app struct {
	cfgPath string
	cfg     *config.Config
	logger  *slog.Logger
	closers []func() error
}

// NewRootCmd builds the portalctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "portalctl",
		Short: "Portal session and role tool",
		Long: `portalctl logs in to the visitor management portal, keeps the session on
disk, and answers which dashboard routes the current role may open.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default ~/.portal/config.yaml)")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newNavCmd(a),
		newCanCmd(a),
		newServeDevCmd(a),
	)
	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	level, _ := cfg.Level()
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *app) close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *app) openStore() portalguard.SessionStore {
	switch a.cfg.Store.Backend {
	case config.StoreRedis:
		rc := a.cfg.Store.Redis
		rdb := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		a.closers = append(a.closers, rdb.Close)
		return store.NewRedis(rdb, rc.Prefix, rc.TTL)
	case config.StoreMemory:
		return store.NewMemory()
	default:
		return store.NewFile(a.cfg.Store.Path)
	}
}

func (a *app) newSession() (*session.Session, error) {
	client, err := identity.NewClient(a.cfg.Identity.BaseURL, identity.WithTimeout(a.cfg.Identity.Timeout))
	if err != nil {
		return nil, err
	}
	reg, err := rbac.NewRegistry(a.cfg.Registry)
	if err != nil {
		return nil, err
	}
	return session.New(client, a.openStore(),
		session.WithLogger(a.logger),
		session.WithEvaluator(rbac.NewEvaluator(reg, rbac.WithLogger(a.logger))),
		session.WithRefreshLead(a.cfg.Session.RefreshLead),
	), nil
}

// restored returns a session resolved from the store.
func (a *app) restored(ctx context.Context) (*session.Session, session.Snapshot, error) {
	s, err := a.newSession()
	if err != nil {
		return nil, session.Snapshot{}, err
	}
	s.Restore(ctx)

	ctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()
	snap, err := s.Await(ctx)
	if err != nil {
		return nil, session.Snapshot{}, fmt.Errorf("failed to restore session: %w", err)
	}
	return s, snap, nil
}
