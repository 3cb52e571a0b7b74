package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"prefork/core/settings"
	"prefork/feature/control"

	"github.com/spf13/cobra"
)

// ctlCmd sends a command to a running server's control app.
var ctlCmd = &cobra.Command{
	Use:       "ctl <command>",
	Short:     "Send a command to the control app",
	Long:      "Commands: " + strings.Join(control.Commands, ", "),
	Args:      cobra.ExactArgs(1),
	ValidArgs: control.Commands,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawURL, _ := cmd.Flags().GetString("control-url")
		token, _ := cmd.Flags().GetString("control-token")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if rawURL == "" {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := settings.Load(cfg.Supervisor.ConfigFile)
			if err != nil {
				return err
			}
			if !st.ControlEnabled() {
				return fmt.Errorf("%s does not activate the control app", cfg.Supervisor.ConfigFile)
			}
			u := st.ControlURL()
			rawURL = u.String()
			if token == "" && st.ControlAuth() == settings.AuthToken {
				token = st.ControlToken()
			}
		}

		client, err := control.NewClient(rawURL, token, timeout)
		if err != nil {
			return err
		}

		var body []byte
		if args[0] == "events" {
			limit, _ := cmd.Flags().GetInt("limit")
			body, err = client.Fetch("events", url.Values{"limit": {strconv.Itoa(limit)}})
		} else {
			body, err = client.Command(args[0])
		}
		if err != nil {
			return err
		}

		var pretty bytes.Buffer
		if json.Indent(&pretty, body, "", "  ") == nil {
			body = pretty.Bytes()
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	},
}

func init() {
	ctlCmd.Flags().String("control-url", "", "control app URL (default: from the directive file)")
	ctlCmd.Flags().String("control-token", "", "control app token")
	ctlCmd.Flags().Duration("timeout", 5*time.Second, "request timeout")
	ctlCmd.Flags().Int("limit", 50, "number of events to fetch")
	RootCmd.AddCommand(ctlCmd)
}
