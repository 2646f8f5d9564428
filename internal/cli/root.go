package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root mavtape command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mavtape",
		Short: "Capture and replay MAVLink telemetry",
		Long: `Mavtape records a live MAVLink stream with its timing and plays it back
later to one or more transports at once, so ground tools can be exercised
without a vehicle in the air.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newCaptureCmd(),
		newReplayCmd(),
		newInspectCmd(),
		newGenerateCmd(),
	)

	return root
}

// NewCaptureProgram returns the capture command as a standalone program.
func NewCaptureProgram() *cobra.Command {
	cmd := newCaptureCmd()
	cmd.Use = "mavcapture"
	cmd.SilenceUsage = true
	return cmd
}

// NewReplayProgram returns the replay command as a standalone program.
func NewReplayProgram() *cobra.Command {
	cmd := newReplayCmd()
	cmd.Use = "mavreplay"
	cmd.SilenceUsage = true
	return cmd
}
