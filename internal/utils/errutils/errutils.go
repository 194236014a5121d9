// Package errutils gives nethost's cobra commands a single place to turn an
// error into a process exit, matching the convention kubectl-style CLIs use
// so a failed "network create" or "host bootstrap" prints a one-line
// "error: ..." message instead of a stack trace.
package errutils

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const DefaultErrorExitCode = 1

// ErrExit is returned by a command's RunE to request a silent non-zero exit
// (the error has already been reported to the user).
var ErrExit = fmt.Errorf("exit")

var fatalErrHandler = fatal

func fatal(msg string, code int) {
	if len(msg) > 0 {
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
		_, _ = fmt.Fprint(os.Stderr, msg)
	}
	os.Exit(code)
}

// CheckErr prints err (if non-nil) and exits the process with a non-zero
// status. Call it from a command's top-level error path, not from library
// code.
func CheckErr(err error) {
	checkErr(err, fatalErrHandler)
}

func checkErr(err error, handleErr func(string, int)) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, ErrExit):
		handleErr("", DefaultErrorExitCode)
	default:
		msg := err.Error()
		if !strings.HasPrefix(msg, "error: ") {
			msg = fmt.Sprintf("error: %s", msg)
		}
		handleErr(msg, DefaultErrorExitCode)
	}
}
