// =============================================================================
// AIMsi to CAPSS Converter - Main Entry Point
// =============================================================================
//
// USAGE:
//   capps convert     - Build capps_upload.xml from the AIMsi exports
//   capps upload      - Submit the document to CAPSS
//   capps settings    - Show or change the persisted run settings
//   capps version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Conversion pipeline, brand resolution, CAPSS client
//   - pkg/       : File utilities (archival, summary log)
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/aimsi-capps-converter/cmd"
)

func main() {
	cmd.Execute()
}
