// Compliance Monitor - device policy compliance service.
//
// compliancemon records policy evaluation outcomes for managed devices:
// an append-only ledger of compliance verdicts, the feature violations
// behind each non-compliance, and a per-device count of consecutive failed
// monitoring attempts.
//
// Usage:
//
//	compliancemon serve
//	compliancemon migrate [up|down|status]
//	compliancemon status <deviceID>
//	compliancemon reset-attempts <deviceID>
//	compliancemon clear-violations <recordID>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-compliance/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getConfigPath returns COMPLIANCE_CONFIG or the default path.
func getConfigPath() string {
	if path := os.Getenv("COMPLIANCE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
