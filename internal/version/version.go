package version

import (
	"fmt"
	"runtime"
)

// Overridden at build time:
//
//	go build -ldflags "-X github.com/denborg/chatsync/internal/version.Version=1.0.0 \
//	  -X github.com/denborg/chatsync/internal/version.Commit=abc123 \
//	  -X github.com/denborg/chatsync/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns a one-line build description.
func Info() string {
	commit := Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("chatsync %s (%s, %s/%s) built %s",
		Version, commit, runtime.GOOS, runtime.GOARCH, Date)
}
