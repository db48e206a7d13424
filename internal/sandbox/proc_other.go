//go:build !unix

package sandbox

import (
	"os"
	"os/exec"
)

func killProcessGroup(cmd *exec.Cmd) {}

func reapProcessGroup(cmd *exec.Cmd) {}

func signalName(ps *os.ProcessState) string { return "" }
