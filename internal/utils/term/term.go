// Package term sizes interactive terminals for nethost's SSH-backed host
// bootstrap command, which opens a PTY on the remote compute host the same
// way an operator's own shell would.
package term

import (
	"fmt"
	"io"

	"github.com/moby/term"
)

// Size returns the width and height of w's underlying terminal, for use as
// the initial PTY window size on an SSH session. Usually w is the process's
// own stdout; stderr will not report a size.
func Size(w io.Writer) (int, int, error) {
	outFd, isTerminal := term.GetFdInfo(w)
	if !isTerminal {
		return 0, 0, fmt.Errorf("given writer is not a terminal")
	}
	winSize, err := term.GetWinsize(outFd)
	if err != nil {
		return 0, 0, err
	}
	return int(winSize.Width), int(winSize.Height), nil
}
