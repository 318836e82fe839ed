package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	guardhttp "portalguard/http"
	"portalguard/jwt"
	"portalguard/session"
)

var errNotLoggedIn = errors.New("not logged in")

func newLoginCmd(a *app) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			s, err := a.newSession()
			if err != nil {
				return err
			}
			p, err := s.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", p.Profile.Username, p.RoleKey)
			fmt.Fprintf(cmd.OutOrStdout(), "Home: %s\n", s.DefaultRoute())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := a.restored(cmd.Context())
			if err != nil {
				return err
			}
			s.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, snap, err := a.restored(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "State: %s\n", snap.State)
			if !snap.State.HasPrincipal() {
				return nil
			}
			p := snap.Principal
			fmt.Fprintf(out, "User: %s <%s>\n", p.Profile.Name, p.Profile.Email)
			fmt.Fprintf(out, "Role: %s\n", p.RoleKey)
			if p.OrganizationID != "" {
				fmt.Fprintf(out, "Organization: %s\n", p.OrganizationID)
			}
			fmt.Fprintf(out, "Home: %s\n", s.DefaultRoute())
			if exp, ok := jwt.ExpiresAt(p.AccessToken); ok {
				fmt.Fprintf(out, "Access token expires: %s\n", exp.Format(time.RFC1123))
			}
			if snap.Degraded {
				fmt.Fprintln(out, "Profile could not be confirmed; showing cached data")
			}
			return nil
		},
	}
}

func newNavCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "nav",
		Short: "List the navigation menu of the current role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, snap, err := a.restored(cmd.Context())
			if err != nil {
				return err
			}
			if snap.State != session.Authenticated {
				return errNotLoggedIn
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLABEL\tPATH")
			for _, item := range s.Navigation() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", item.ID, item.Label, item.Path)
			}
			return w.Flush()
		},
	}
}

func newCanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "can <path>",
		Short: "Check whether the current role may open a route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.restored(cmd.Context())
			if err != nil {
				return err
			}
			p, _ := s.CurrentPrincipal()
			d := guardhttp.NewGuard(s.Evaluator()).CheckPath(p, args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], d)
			if d != guardhttp.Allow {
				return fmt.Errorf("access to %s not allowed", args[0])
			}
			return nil
		},
	}
}
