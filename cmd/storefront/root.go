package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/campusmarket/storefront/internal/config"
	"github.com/campusmarket/storefront/internal/logger"
)

// newRootCmd builds the command tree. The returned cleanup flushes pending
// cart saves and must run after Execute, whether or not the command failed.
func newRootCmd() (*cobra.Command, func(context.Context)) {
	var (
		a        *app
		logLevel string
	)
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Campus Market storefront client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			ctx := logger.StartTrace(cmd.Context())
			cmd.SetContext(ctx)
			a, err = newApp(ctx, cfg, cmd.OutOrStdout())
			return err
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	get := func() *app { return a }
	root.AddCommand(
		newLoginCmd(get),
		newRegisterCmd(get),
		newLogoutCmd(get),
		newWhoamiCmd(get),
		newCartCmd(get),
		newCheckoutCmd(get),
		newPayCmd(get),
		newOrdersCmd(get),
		newPaymentCmd(get),
	)
	cleanup := func(ctx context.Context) {
		if a != nil {
			a.close(ctx)
		}
	}
	return root, cleanup
}
