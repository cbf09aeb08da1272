package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gdamore/tcell/v2"
)

// canInitializeTUI tests if tcell can actually be initialized
func canInitializeTUI() bool {
	screen, err := tcell.NewScreen()
	if err != nil {
		return false
	}
	if err := screen.Init(); err != nil {
		return false
	}
	screen.Fini()
	return true
}

// needsPseudoTTY checks if we need to use script command for pseudo-TTY
func needsPseudoTTY() bool {
	if file, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
		file.Close()
		return false
	}
	return true
}

// runWithPseudoTTY re-executes the binary with args under script(1) so tcell
// gets a terminal, adding --force-tui to avoid looping.
func runWithPseudoTTY(args []string) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmdArgs := append([]string(nil), args...)
	hasForceTUI := false
	for _, arg := range args {
		if arg == "--force-tui" {
			hasForceTUI = true
			break
		}
	}
	if !hasForceTUI {
		cmdArgs = append(cmdArgs, "--force-tui")
	}

	quotedArgs := make([]string, len(cmdArgs))
	for i, arg := range cmdArgs {
		quotedArgs[i] = fmt.Sprintf(`"%s"`, arg)
	}
	fullCmd := fmt.Sprintf(`TERM=%s "%s" %s`, os.Getenv("TERM"), executable, strings.Join(quotedArgs, " "))

	scriptCmd := exec.Command("script", "-qec", fullCmd, "/dev/null")
	scriptCmd.Stdin = os.Stdin
	scriptCmd.Stdout = os.Stdout
	scriptCmd.Stderr = os.Stderr
	scriptCmd.Env = os.Environ()
	return scriptCmd.Run()
}

// openLogFile opens logs/<name> under the working directory for append.
// Returns nil when the file cannot be created; callers fall back to stderr.
func openLogFile(name string) *os.File {
	logDir := filepath.Join(getWorkingDir(), "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil
	}
	return f
}

// errorFilterWriter only writes error messages to the underlying writer
type errorFilterWriter struct {
	writer io.Writer
}

func (w *errorFilterWriter) Write(p []byte) (n int, err error) {
	lc := strings.ToLower(string(p))
	if strings.Contains(lc, "error") ||
		strings.Contains(lc, "failed") ||
		strings.Contains(lc, "panic") {
		return w.writer.Write(p)
	}
	return len(p), nil
}

// getTerminalInfo returns detailed terminal information
func getTerminalInfo() string {
	var info []string

	if term := os.Getenv("TERM"); term == "" {
		info = append(info, "TERM=<not set>")
	} else {
		info = append(info, fmt.Sprintf("TERM=%s", term))
	}
	if termProgram := os.Getenv("TERM_PROGRAM"); termProgram != "" {
		info = append(info, fmt.Sprintf("TERM_PROGRAM=%s", termProgram))
	}
	if width, height := getTerminalSize(); width > 0 && height > 0 {
		info = append(info, fmt.Sprintf("Size=%dx%d", width, height))
	}
	if isTerminal() {
		info = append(info, "TTY=yes")
	} else {
		info = append(info, "TTY=no")
	}
	return strings.Join(info, ", ")
}

// isTerminal checks if stdout is a terminal
func isTerminal() bool {
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

// getExecutableDir returns the directory of the running executable.
// Falls back to current directory on error.
func getExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// getWorkingDir returns the current working directory.
// Falls back to executable directory if os.Getwd fails.
func getWorkingDir() string {
	if wd, err := os.Getwd(); err == nil && wd != "" {
		return wd
	}
	return getExecutableDir()
}

// resolvePathRelativeToBase resolves a possibly relative path against a base directory.
// Absolute paths and ":memory:" are returned unchanged.
func resolvePathRelativeToBase(base, p string) string {
	if filepath.IsAbs(p) || p == ":memory:" {
		return p
	}
	p = strings.TrimPrefix(p, "./")
	return filepath.Join(base, p)
}
