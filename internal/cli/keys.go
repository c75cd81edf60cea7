package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alexbotov/clashapi/internal/keyring"
	"github.com/alexbotov/clashapi/pkg/clash"
)

func newKeysCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage developer API keys",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the account's keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withKeyring(cmd, func(ctx context.Context, rt *runtime, kr *keyring.Keyring) error {
				keys, err := kr.Keys(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(cmd.OutOrStdout(), keys)
				}
				return printKeys(cmd.OutOrStdout(), keys)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create NAME",
		Short: "Create a key for this machine's public IP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withKeyring(cmd, func(ctx context.Context, rt *runtime, kr *keyring.Keyring) error {
				key, err := kr.Create(ctx, args[0])
				if err != nil {
					return err
				}
				return opts.printKey(cmd.OutOrStdout(), key)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke ID",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withKeyring(cmd, func(ctx context.Context, rt *runtime, kr *keyring.Keyring) error {
				if err := kr.Revoke(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure [NAME]",
		Short: "Print a key usable from this machine, creating one if needed",
		Long: `ensure reuses a key with the given name whose CIDR ranges include this
machine's public IP. Otherwise it creates one, revoking the oldest key of
that name first when the account is full. NAME defaults to the configured
key name.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withKeyring(cmd, func(ctx context.Context, rt *runtime, kr *keyring.Keyring) error {
				name := rt.cfg.Portal.KeyName
				if len(args) == 1 {
					name = args[0]
				}
				key, created, err := kr.Ensure(ctx, name)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(cmd.ErrOrStderr(), "Created key %s\n", key.ID)
				}
				return opts.printKey(cmd.OutOrStdout(), key)
			})
		},
	})

	return cmd
}

func (o *options) printKey(w io.Writer, key *clash.APIKey) error {
	if o.jsonOutput {
		return printJSON(w, key)
	}
	fmt.Fprintf(w, "ID:     %s\n", key.ID)
	fmt.Fprintf(w, "Name:   %s\n", key.Name)
	fmt.Fprintf(w, "CIDRs:  %s\n", strings.Join(key.CidrRanges, ", "))
	fmt.Fprintf(w, "Key:    %s\n", key.Key)
	return nil
}

func printKeys(w io.Writer, keys []clash.APIKey) error {
	if len(keys) == 0 {
		fmt.Fprintln(w, "No keys")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCIDR RANGES\tSCOPES")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", k.ID, k.Name, strings.Join(k.CidrRanges, ","), strings.Join(k.Scopes, ","))
	}
	return tw.Flush()
}
