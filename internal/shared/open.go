package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// openCommand returns the command that hands target to the desktop's default handler.
func openCommand(goos, target string) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{"open", target}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return []string{"xdg-open", target}, nil
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", target}, nil
	}
	return nil, fmt.Errorf("%w: cannot open files on %s", ErrNotImplemented, goos)
}

// Open opens a file or URL with the default application, e.g. an exported PDF or the served map.
// It does not wait for the application to exit.
func Open(target string) error {
	args, err := openCommand(getRuntime(), target)
	if err != nil {
		return err
	}

	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}
	go cmd.Wait()
	return nil
}
