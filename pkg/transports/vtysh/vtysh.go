// Package vtysh drives the Quagga management shell on the local host and
// holds the argument and output conventions shared with the SSH transport.
package vtysh

import (
	"fmt"
	"strings"
)

// ShowRunningConfig prints the live configuration of every daemon.
const ShowRunningConfig = "show running-config"

// Args returns the vtysh arguments that run commands in order, in one
// session.
func Args(commands ...string) []string {
	args := make([]string, 0, 2*len(commands))
	for _, c := range commands {
		args = append(args, "-c", c)
	}
	return args
}

// CommandLine renders a vtysh invocation for a POSIX shell.
func CommandLine(path string, sudo bool, commands ...string) string {
	var b strings.Builder
	if sudo {
		b.WriteString("sudo -n ")
	}
	b.WriteString(Quote(path))
	for _, arg := range Args(commands...) {
		b.WriteByte(' ')
		b.WriteString(Quote(arg))
	}
	return b.String()
}

// Quote wraps s in single quotes for a POSIX shell.
func Quote(s string) string {
	if s != "" && strings.IndexFunc(s, unsafeRune) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func unsafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./:=@,+", r)
}

// CommandError is a batch vtysh refused.
type CommandError struct {
	// Message is the first error line printed by vtysh.
	Message string

	// ExitCode is the vtysh exit status, 0 when it exited cleanly but
	// still complained.
	ExitCode int
}

func (e *CommandError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("vtysh exited with code %d: %s", e.ExitCode, e.Message)
	}
	return "vtysh: " + e.Message
}

// CheckOutput scans the output of a configuration batch. vtysh reports a
// rejected line as "% ..." and, depending on the build, still exits 0.
func CheckOutput(output string) error {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "%") || strings.Contains(line, ": %") {
			return &CommandError{Message: line}
		}
	}
	return nil
}

// firstLine returns the first non-empty line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
