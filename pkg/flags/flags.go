// Package flags adds standard-library command-line flags for log level
// and version. cmd/rtpsd does not import it; it configures logging through
// its own cobra flags.
package flags

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// ConfigureAndParse adds flags that are common to all go processes. This
// func calls flag.Parse(), so it should be called after all other flags
// have been configured.
func ConfigureAndParse() {
	logLevel := flag.String("log-level", log.InfoLevel.String(),
		"log level, must be one of: panic, fatal, error, warn, info, debug")
	printVersion := flag.Bool("version", false, "print version and exit")

	flag.Parse()

	setLogLevel(*logLevel)
	maybePrintVersionAndExit(*printVersion)
}

func setLogLevel(logLevel string) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Fatalf("invalid log-level: %s", logLevel)
	}
	log.SetLevel(level)
}

func maybePrintVersionAndExit(printVersion bool) {
	if printVersion {
		fmt.Println(Version)
		os.Exit(0)
	}
	log.Infof("running version %s", Version)
}
