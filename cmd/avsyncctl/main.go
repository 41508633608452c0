// Command avsyncctl drives a running avsync coordinator over its HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const defaultServer = "http://127.0.0.1:8190"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "avsyncctl:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	server := defaultServer
	if v := os.Getenv("AVSYNC_SERVER"); v != "" {
		server = v
	}

	c := &client{}
	root := &cobra.Command{
		Use:           "avsyncctl",
		Short:         "Control a running avsync coordinator",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.base = server
		},
	}
	root.PersistentFlags().StringVarP(&server, "server", "s", server, "coordinator base URL")

	root.AddCommand(newStateCmd(c))
	root.AddCommand(newToggleCmd(c))
	root.AddCommand(newClickCmd(c))
	root.AddCommand(newSettingCmd(c, "sync", "Set the audio delay in milliseconds", "processSyncChange", "syncValue"))
	root.AddCommand(newSettingCmd(c, "max-selectable", "Set the largest delay the popup offers", "maxSelectableDelayChange", "maxSelectableDelayValue"))
	root.AddCommand(newSettingCmd(c, "max-acceptable", "Set the largest delay the content script accepts", "maxAcceptableDelayChange", "maxAcceptableDelayValue"))
	root.AddCommand(newDeviceCmd(c))
	root.AddCommand(newLinksCmd(c))

	return root
}
