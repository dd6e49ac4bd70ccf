// Package main - точка входа SoulSpace Hub.
//
// Один бинарник с подкомандами:
//
//	soulspace serve                        - HTTP API, кеш, шина событий, NATS
//	soulspace migrate [--down|--status]    - миграции PostgreSQL
//	soulspace level <totalXp>              - уровень по суммарному XP
//	soulspace categorize <title> [desc]    - категория цели
//	soulspace token <userId>               - dev-токен для локальной разработки
//	soulspace hash-key <key>               - bcrypt-хеш сервисного ключа
//	soulspace version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Заполняются при сборке через -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "soulspace",
		Short:         "SoulSpace XP progression and goal service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newLevelCmd(),
		newCategorizeCmd(),
		newTokenCmd(),
		newHashKeyCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "soulspace %s (%s)\n", version, commit)
		},
	}
}
