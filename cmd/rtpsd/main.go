// Command rtpsd is a reference daemon wiring pkg/rtps/participant to the
// UDPv4 reference transport, the way linkerd2's controller binaries wire
// their API packages to a gRPC server and an admin endpoint.
package main

import (
	"os"

	"github.com/rtps-io/rtps-core/cmd/rtpsd/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
