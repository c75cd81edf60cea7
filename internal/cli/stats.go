package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexbotov/clashapi/internal/keyring"
	"github.com/alexbotov/clashapi/pkg/clash"
)

// statsClient returns a statistics client authorized with the configured key,
// creating the key when this machine has none
func statsClient(ctx context.Context, rt *runtime, kr *keyring.Keyring) (*clash.Client, error) {
	token, err := kr.Token(ctx, rt.cfg.Portal.KeyName)
	if err != nil {
		return nil, err
	}
	return rt.statsClient().WithToken(token), nil
}

func newClanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clan TAG",
		Short: "Show a clan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withKeyring(cmd, func(ctx context.Context, rt *runtime, kr *keyring.Keyring) error {
				client, err := statsClient(ctx, rt, kr)
				if err != nil {
					return err
				}
				clan, err := client.Clan(ctx, args[0])
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if opts.jsonOutput {
					return printJSON(w, clan)
				}
				fmt.Fprintf(w, "%s %s\n", clan.Tag, clan.Name)
				fmt.Fprintf(w, "Level:    %d\n", clan.ClanLevel)
				fmt.Fprintf(w, "Points:   %d\n", clan.ClanPoints)
				fmt.Fprintf(w, "Members:  %d\n", clan.Members)
				return nil
			})
		},
	}
}

func newPlayerCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "player TAG",
		Short: "Show a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withKeyring(cmd, func(ctx context.Context, rt *runtime, kr *keyring.Keyring) error {
				client, err := statsClient(ctx, rt, kr)
				if err != nil {
					return err
				}
				player, err := client.Player(ctx, args[0])
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if opts.jsonOutput {
					return printJSON(w, player)
				}
				fmt.Fprintf(w, "%s %s\n", player.Tag, player.Name)
				fmt.Fprintf(w, "Town hall:  %d\n", player.TownHallLevel)
				fmt.Fprintf(w, "Trophies:   %d (best %d)\n", player.Trophies, player.BestTrophies)
				fmt.Fprintf(w, "War stars:  %d\n", player.WarStars)
				if player.Clan != nil {
					fmt.Fprintf(w, "Clan:       %s %s\n", player.Clan.Tag, player.Clan.Name)
				}
				return nil
			})
		},
	}
}
