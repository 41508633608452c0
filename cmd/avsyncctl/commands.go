package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newStateCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show mode, tracked resources and toolbar state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out json.RawMessage
			if err := c.do(cmd.Context(), http.MethodGet, "/api/v1/state", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func newToggleCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Switch between enabled and disabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return modeCall(cmd, c, "/api/v1/toggle")
		},
	}
}

func newClickCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "click",
		Short: "Press the toolbar button",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return modeCall(cmd, c, "/api/v1/action/click")
		},
	}
}

func modeCall(cmd *cobra.Command, c *client, path string) error {
	var out struct {
		Mode string `json:"mode"`
	}
	if err := c.do(cmd.Context(), http.MethodPost, path, nil, &out); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), out.Mode)
	return nil
}

func newSettingCmd(c *client, use, short, kind, field string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <value>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[0], err)
			}
			if _, err := c.message(cmd.Context(), map[string]any{"message": kind, field: v}); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s set to %s\n", use, strconv.FormatFloat(v, 'f', -1, 64))
			return nil
		},
	}
}

func newDeviceCmd(c *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Report audio output device changes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "connect <name>",
		Short: "Report a connected audio device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.message(cmd.Context(), map[string]any{"message": "performAudioDeviceConnectedActions", "audioDevice": args[0]})
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "disconnect",
		Short: "Report that the audio device went away",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.message(cmd.Context(), map[string]any{"message": "performAudioDeviceDisconnectedActions"})
			return err
		},
	})
	return cmd
}

func newLinksCmd(c *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "List or open toolbar menu links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Links []string `json:"links"`
			}
			if err := c.do(cmd.Context(), http.MethodGet, "/api/v1/links", nil, &out); err != nil {
				return err
			}
			for _, name := range out.Links {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "open <name>",
		Short: "Open a link in a new tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.do(cmd.Context(), http.MethodPost, "/api/v1/links/"+url.PathEscape(args[0]), nil, nil)
		},
	})
	return cmd
}

func printJSON(cmd *cobra.Command, raw json.RawMessage) error {
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), buf.String())
	return err
}
