// =============================================================================
// AIMsi to CAPSS Converter - Settings Command
// =============================================================================
//
// COMMAND USAGE:
//   capps settings show
//   capps settings set <key> <value>
//
// Secrets (api_key, capss_client_secret) are masked by `show`.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/aimsi-capps-converter/internal/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the persisted run settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the settings file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(settingsFile)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", settingsFile)
		for _, key := range settings.Keys {
			fmt.Fprintf(out, "%-20s = %s\n", key, s.Display(key))
		}
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: fmt.Sprintf(`Change one setting and save the file.

Keys: %v`, settings.Keys),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(settingsFile)
		if err != nil {
			return err
		}
		if err := s.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := s.Save(settingsFile); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], s.Display(args[0]))
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
