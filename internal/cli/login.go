package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexbotov/clashapi/pkg/clash"
)

type loginResult struct {
	Developer clash.Developer `json:"developer"`
	ExpiresAt time.Time       `json:"expires_at"`
	Keys      int             `json:"keys"`
	Scopes    []string        `json:"scopes,omitempty"`
	Subject   string          `json:"subject,omitempty"`
}

func newLoginCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Check the credentials and show the developer profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := opts.start(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			sessions := rt.sessions()
			acct, err := clash.OpenAccount(ctx, sessions, rt.cfg.ClashCredentials())
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
				defer cancel()
				if _, err := sessions.Logout(closeCtx, acct.Session); err != nil {
					rt.logger.Warn("logout failed", zap.Error(err))
				}
			}()

			result := loginResult{
				Developer: acct.Session.Developer,
				ExpiresAt: acct.Session.ExpiresAt(),
				Keys:      acct.Keys.Len(),
			}
			if claims, err := acct.Session.Claims(); err == nil {
				result.Scopes = claims.Scopes
				result.Subject = claims.Subject
			} else {
				rt.logger.Debug("session token claims unavailable", zap.Error(err))
			}

			w := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(w, result)
			}
			fmt.Fprintf(w, "Logged in as %s <%s>\n", result.Developer.Name, result.Developer.Email)
			fmt.Fprintf(w, "Developer:  %s\n", result.Developer.ID)
			fmt.Fprintf(w, "Tier:       %s\n", result.Developer.Tier)
			fmt.Fprintf(w, "Keys:       %d\n", result.Keys)
			fmt.Fprintf(w, "Expires:    %s\n", result.ExpiresAt.Format(time.RFC3339))
			if len(result.Scopes) > 0 {
				fmt.Fprintf(w, "Scopes:     %s\n", strings.Join(result.Scopes, ", "))
			}
			return nil
		},
	}
}
