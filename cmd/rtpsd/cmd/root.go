package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var verbose bool

// NewRootCmd builds rtpsd's root Cobra command and its subcommands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rtpsd",
		Short: "rtpsd runs a standalone RTPS domain participant",
		Long:  `rtpsd runs a standalone RTPS domain participant over the UDPv4 reference transport.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.InfoLevel)
			}
		},
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "turn on debug logging")

	root.AddCommand(newCmdRun())
	root.AddCommand(newCmdDiscover())
	return root
}
