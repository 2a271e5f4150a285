// =============================================================================
// AIMsi to CAPSS Converter - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   capps version
//
// Version and BuildDate are set at build time:
//   go build -ldflags "-X 'github.com/ginjaninja78/aimsi-capps-converter/cmd.Version=1.2.0'"
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the application version.
var Version = "dev"

// BuildDate is the date the application was built.
var BuildDate = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "AIMsi to CAPSS Converter")
		fmt.Fprintf(out, "Version:    %s\n", Version)
		fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
