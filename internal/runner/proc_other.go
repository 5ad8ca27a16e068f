//go:build !unix

package runner

import "os/exec"

// setProcessGroup keeps exec.CommandContext's default cancellation (Process.Kill).
func setProcessGroup(cmd *exec.Cmd) {}
