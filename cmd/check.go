package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"prefork/core/database"
	"prefork/core/settings"
	"prefork/feature/journal"

	"github.com/spf13/cobra"
)

// checkCmd validates the directive file without starting anything.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the directive file and print the resolved settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		st, err := settings.Load(cfg.Supervisor.ConfigFile)
		if err != nil {
			for _, ce := range settings.ConfigErrors(err) {
				fmt.Fprintln(cmd.ErrOrStderr(), ce.Error())
			}
			return fmt.Errorf("%s is invalid", cfg.Supervisor.ConfigFile)
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			snap := st.Snapshot()
			snap.ControlToken = ""
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return err
			}
		} else {
			printSettings(out, cfg.Supervisor.ConfigFile, st)
		}

		if verify, _ := cmd.Flags().GetBool("journal"); verify {
			db, err := database.Connect(cfg.Database)
			if err != nil {
				return fmt.Errorf("journal database: %w", err)
			}
			missing, err := journal.New(db).Verify()
			if err != nil {
				return fmt.Errorf("journal verification failed: %w", err)
			}
			if len(missing) > 0 {
				return fmt.Errorf("journal table is missing columns: %s", strings.Join(missing, ", "))
			}
			fmt.Fprintln(out, "journal: ok")
		}
		return nil
	},
}

func printSettings(out io.Writer, path string, st *settings.ServerSettings) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	row := func(k string, v any) { fmt.Fprintf(w, "%s\t%v\n", k, v) }

	row("file", path)
	row("bind", st.BindAddress())
	row("workers", st.WorkerCount())
	row("preload_app", st.PreloadApp())
	row("threads", fmt.Sprintf("%d, %d", st.MinThreads(), st.MaxThreads()))
	row("environment", st.Environment())
	if st.Tag() != "" {
		row("tag", st.Tag())
	}
	row("worker_timeout", st.WorkerTimeout())
	row("worker_boot_timeout", st.WorkerBootTimeout())
	row("worker_shutdown_timeout", st.WorkerShutdownTimeout())

	if st.ControlEnabled() {
		u := st.ControlURL()
		row("control_url", u.String())
		row("control_auth", st.ControlAuth())
		row("control_data_only", st.ControlDataOnly())
	} else {
		row("control_url", "(disabled)")
	}

	plugins := st.Plugins()
	if len(plugins) == 0 {
		row("plugins", "(none)")
	} else {
		row("plugins", strings.Join(plugins, ", "))
	}
	if name := st.MetricsPluginName(); name != "" {
		u := st.MetricsURL()
		row("metrics_url", u.String())
	}
}

func init() {
	checkCmd.Flags().Bool("json", false, "print the settings snapshot as JSON")
	checkCmd.Flags().Bool("journal", false, "also verify the event journal table")
	RootCmd.AddCommand(checkCmd)
}
