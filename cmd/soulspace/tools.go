package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soulspace/soulspace-hub/config"
	"github.com/soulspace/soulspace-hub/internal/application/query"
	"github.com/soulspace/soulspace-hub/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// OFFLINE TOOLS
// Команды без хранилища: чистый движок уровней и категоризатор.
// ══════════════════════════════════════════════════════════════════════════════

func newLevelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "level <totalXp>",
		Short: "Describe the level reached at a total XP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			totalXP, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("totalXp must be an integer: %w", err)
			}
			dto, err := query.DescribeLevel(totalXP)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto)
		},
	}
}

func newCategorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categorize <title> [description]",
		Short: "Categorize goal text",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := query.CategorizeTextQuery{Title: args[0]}
			if len(args) == 2 {
				q.Description = args[1]
			}
			return printJSON(cmd.OutOrStdout(), query.NewCategorizeTextHandler(nil).Handle(q))
		},
	}
}

// newTokenCmd issues a bearer token signed with the configured secret.
// Production tokens come from the auth provider.
func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <userId>",
		Short: "Issue a development bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return errors.New("refusing to issue tokens in production")
			}
			token, err := handlers.NewBearerAuth(cfg.HTTP.JWTSecret, cfg.HTTP.JWTIssuer).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newHashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print the bcrypt hash of a service key for SOULSPACE_HTTP_SERVICE_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if key == "" {
				return errors.New("key must not be empty")
			}
			hash, err := handlers.HashServiceKey(key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
