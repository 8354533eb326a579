package cmd

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rtps-io/rtps-core/pkg/admin"
)

func newCmdRun() *cobra.Command {
	opts := &participantOptions{}
	var adminAddr string
	var enablePprof bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a participant until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, transports, err := newParticipant(opts)
			if err != nil {
				return err
			}

			adminServer := admin.NewServer(adminAddr, enablePprof, p)
			go func() {
				log.WithField("addr", adminAddr).Info("starting admin server")
				if err := adminServer.ListenAndServe(); err != nil {
					log.WithError(err).Warn("admin server stopped")
				}
			}()

			log.WithField("guid", p.GUID().String()).Info("participant running, press ctrl-c to stop")

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			log.Info("shutting down")
			_ = adminServer.Close()
			if err := p.Close(); err != nil {
				log.WithError(err).Warn("error closing participant")
			}
			return transports.Shutdown()
		},
	}

	addParticipantFlags(cmd, opts)
	cmd.Flags().StringVar(&adminAddr, "admin-addr", ":9997", "address to serve /metrics and /ready on")
	cmd.Flags().BoolVar(&enablePprof, "enable-pprof", false, "enable pprof endpoints on the admin server")
	return cmd
}
