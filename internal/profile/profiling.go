// Package profile wires github.com/pkg/profile behind an environment
// variable so the network-host daemon can be profiled in place during a
// reclamation-storm or RPC fan-out investigation without a code change.
package profile

import (
	"os"

	"github.com/pkg/profile"
)

type noop struct{}

func (noop) Stop() {}

// Start begins CPU/memory/mutex/block profiling according to the PROFILING
// environment variable and returns a stopper to defer in main().
func Start() interface{ Stop() } {
	switch os.Getenv("PROFILING") {
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.NoShutdownHook)
	case "mem":
		return profile.Start(profile.MemProfile, profile.NoShutdownHook)
	case "mutex":
		return profile.Start(profile.MutexProfile, profile.NoShutdownHook)
	case "block":
		return profile.Start(profile.BlockProfile, profile.NoShutdownHook)
	}
	return noop{}
}

// HelpMessage documents the PROFILING environment variable for --help output.
func HelpMessage() string {
	return `- PROFILING: set to "cpu", "mem", "mutex" or "block" to enable the matching
  profiler for the lifetime of the process. Disabled by default.`
}
