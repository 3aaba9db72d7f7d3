package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"daily-driver/internal/app"
	"daily-driver/internal/config"
	"daily-driver/internal/logging"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	var core *app.Core
	rootCmd := &cobra.Command{
		Use:           "docctl",
		Short:         "Inspect and edit daily driver user documents",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger := logging.New(cfg.AppName, cfg.Env, cfg.LogLevel)
			logger.SetOutput(os.Stderr)
			core, err = app.Open(cfg, logger)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				core.Close()
			}
		},
	}

	getCore := func() *app.Core { return core }
	rootCmd.AddCommand(profileCmd(getCore))
	rootCmd.AddCommand(showCmd(getCore))
	rootCmd.AddCommand(recentCmd(getCore))
	rootCmd.AddCommand(categoryCmd(getCore))
	rootCmd.AddCommand(taskCmd(getCore))
	rootCmd.AddCommand(tokenCmd(getCore))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signIn loads userID's document into the cache the same way a device session does.
func signIn(ctx context.Context, core *app.Core, userID string) (func(), error) {
	unbind := core.Profiles.Bind(ctx, core.Sessions)
	core.Sessions.SignIn(userID)
	if snap := core.Cache.Read(); snap == nil || snap.ID != userID {
		unbind()
		// Bind only logs; load again to get the error.
		if err := core.Profiles.Load(ctx, userID); err != nil {
			return nil, err
		}
		unbind = func() {}
	}
	return func() {
		core.Sessions.SignOut()
		unbind()
	}, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
