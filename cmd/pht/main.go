package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cl "pricehunt/internal/cli"
	"pricehunt/internal/config"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "pht",
		Short:        "Pricehunt CLI game client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newInitCmd(),
		newLogoutCmd(),
		newCatalogCmd(&apiBase),
		newItemCmd(&apiBase),
		newWatchCmd(&apiBase),
		newUnwatchCmd(&apiBase),
		newShotCmd(&apiBase),
		newCommitCmd(&apiBase),
		newDiscardCmd(&apiBase),
		newWalletCmd(&apiBase),
		newTradeInCmd(&apiBase),
		newShipCmd(&apiBase),
		newCoachCmd(&apiBase),
		newArcadeCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func requireSession() (cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return cl.Session{}, fmt.Errorf("run `pht init` first: %w", err)
	}
	return sess, nil
}

func cmdContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func printJSON(v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}

func newInitCmd() *cobra.Command {
	var handle string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a local player identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := cl.LoadSession(); err == nil {
				return fmt.Errorf("session already exists; run `pht logout` to start over")
			}
			sess := cl.NewSession(handle)
			if err := cl.SaveSession(sess); err != nil {
				return err
			}
			fmt.Printf("player id %s saved\n", sess.PlayerID)
			return nil
		},
	}
	cmd.Flags().StringVar(&handle, "handle", "", "display handle stored locally")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the local player identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			fmt.Println("session cleared")
			return nil
		},
	}
}

func newCatalogCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List tracked items and their live prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Catalog(ctx, sess.PlayerID)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newItemCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "item <item-id>",
		Short: "Show one item with price history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).ItemDetail(ctx, sess.PlayerID, args[0])
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newWatchCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <item-id>",
		Short: "Mark an item as being watched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).StartViewing(ctx, sess.PlayerID, args[0])
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newUnwatchCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unwatch <item-id>",
		Short: "Stop watching an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).StopViewing(ctx, sess.PlayerID, args[0])
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newShotCmd(apiBase *string) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "shot <item-id>",
		Short: "Capture a chance-to-buy price snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).TakeShot(ctx, sess.PlayerID, args[0], mode)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "single", "capture mode: single or multi")
	return cmd
}

func newCommitCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "commit <shot-id> <price-micros>",
		Short: "Buy at one of the captured prices",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			price, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid price: %w", err)
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).CommitShot(ctx, sess.PlayerID, args[0], price)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newDiscardCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <shot-id>",
		Short: "Walk away from a captured snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).DiscardShot(ctx, sess.PlayerID, args[0])
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newWalletCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "wallet",
		Short: "Show balance, vault and shipping queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Wallet(ctx, sess.PlayerID)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newTradeInCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "trade-in <vault-item-id>",
		Short: "Trade a vaulted item back for coins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).TradeIn(ctx, sess.PlayerID, args[0])
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newShipCmd(apiBase *string) *cobra.Command {
	ship := &cobra.Command{
		Use:   "ship",
		Short: "Manage the shipping queue",
	}

	move := &cobra.Command{
		Use:   "move <vault-item-id> [vault-item-id...]",
		Short: "Move vault items into the shipping queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).MoveToShipping(ctx, sess.PlayerID, args)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	recall := &cobra.Command{
		Use:   "recall <shipping-id>",
		Short: "Return an unconfirmed shipment to the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).RecallShipping(ctx, sess.PlayerID, args[0])
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	confirm := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm the shipment; queued items leave the game",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).ConfirmShipping(ctx, sess.PlayerID)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	ship.AddCommand(move, recall, confirm)
	return ship
}

func newCoachCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "coach <item-id> <question>",
		Short: "Ask the coach about an item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).AskCoach(ctx, sess.PlayerID, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func newArcadeCmd(apiBase *string) *cobra.Command {
	arcadeCmd := &cobra.Command{
		Use:   "arcade",
		Short: "Seeded mini-games",
	}

	var round int
	botMove := &cobra.Command{
		Use:   "bot-move <seed> <legal-move> [legal-move...]",
		Short: "Ask the bot for its move in a round",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).BotMove(ctx, sess.PlayerID, args[0], round, args[1:])
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	botMove.Flags().IntVar(&round, "round", 1, "round number")

	var cards int
	puzzle := &cobra.Command{
		Use:   "puzzle <seed>",
		Short: "Deal a seeded card puzzle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).Puzzle(ctx, sess.PlayerID, args[0], cards)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	puzzle.Flags().IntVar(&cards, "cards", 5, "number of cards to deal")

	verify := &cobra.Command{
		Use:   "verify <seed> <cards-json>",
		Short: "Check a claimed deal against its seed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := requireSession()
			if err != nil {
				return err
			}
			var claimed []map[string]any
			if err := json.Unmarshal([]byte(args[1]), &claimed); err != nil {
				return fmt.Errorf("invalid cards json: %w", err)
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			out, err := newClient(apiBase).VerifyPuzzle(ctx, sess.PlayerID, args[0], claimed)
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	arcadeCmd.AddCommand(botMove, puzzle, verify)
	return arcadeCmd
}
