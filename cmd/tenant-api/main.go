// Command tenant-api runs the reference tenant REST API.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app/tenantapi"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.tenant-api.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadTenantAPI(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = tenantapi.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Tenant API stopped: %v\n", err)
		os.Exit(1)
	}
}
