// Command syncd runs the on-device sync daemon.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app/syncd"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.syncd.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadSyncd(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = syncd.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Sync daemon stopped: %v\n", err)
		os.Exit(1)
	}
}
