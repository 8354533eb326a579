package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCmdDiscover() *cobra.Command {
	opts := &participantOptions{}
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Start a participant, listen for peers, and print what it sees",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, transports, err := newParticipant(opts)
			if err != nil {
				return err
			}
			defer transports.Shutdown()
			defer p.Close()

			time.Sleep(duration)

			remotes := p.KnownParticipants()
			fmt.Printf("%d participant(s) discovered:\n", len(remotes))
			for _, r := range remotes {
				fmt.Printf("  %x  unicast=%v  builtin=%#x  lease=%s\n",
					r.GuidPrefix, r.MetatrafficUnicastLocators, uint32(r.AvailableBuiltinEndpoints), r.LeaseDuration)
			}
			return nil
		},
	}

	addParticipantFlags(cmd, opts)
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long to listen before reporting")
	return cmd
}
