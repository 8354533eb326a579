package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rtps-io/rtps-core/pkg/rtps/locator"
	"github.com/rtps-io/rtps-core/pkg/rtps/participant"
	udptransport "github.com/rtps-io/rtps-core/pkg/rtps/transport/udp"
)

// participantOptions holds the flags common to every subcommand that
// stands up a participant.
type participantOptions struct {
	domainID      int
	participantID int
}

func addParticipantFlags(cmd *cobra.Command, o *participantOptions) {
	cmd.Flags().IntVar(&o.domainID, "domain-id", 0, "RTPS domain id")
	cmd.Flags().IntVar(&o.participantID, "participant-id", 0, "RTPS participant id within the domain")
}

// newParticipant builds a participant.Participant over a fresh UDPv4
// transport, the one reference Transport the core is shipped with.
func newParticipant(o *participantOptions) (*participant.Participant, *locator.Registry, error) {
	log := log.WithField("component", "rtpsd")

	transport := udptransport.New(log)
	transports := locator.NewRegistry(transport)

	cfg := participant.DefaultConfig()
	cfg.DomainId = o.domainID
	cfg.ParticipantId = o.participantID

	p, err := participant.New(cfg, transports)
	if err != nil {
		return nil, nil, fmt.Errorf("start participant: %w", err)
	}
	return p, transports, nil
}
