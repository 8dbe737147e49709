package launch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/danmuck/spawnctl/internal/observability"
	"github.com/danmuck/spawnctl/internal/selections"
	"github.com/danmuck/spawnctl/internal/store"
)

var (
	ErrNotExecutable = errors.New("launch: implementation cannot be executed directly")
	ErrMissingFile   = errors.New("launch: entry point file does not exist")
	ErrLaunchFailed  = errors.New("launch: failed to run program")
)

const defaultShell = "/bin/sh"

// Invocation is a fully computed command line, ready to exec.
type Invocation struct {
	Path string
	Args []string
}

func (inv Invocation) String() string {
	if len(inv.Args) == 0 {
		return inv.Path
	}
	return inv.Path + " " + strings.Join(inv.Args, " ")
}

// Launcher turns a fully cached selection set into a process invocation.
type Launcher struct {
	store store.Resolver
	shell string
	log   zerolog.Logger
}

func NewLauncher(resolver store.Resolver, log zerolog.Logger) *Launcher {
	return &Launcher{store: resolver, shell: defaultShell, log: log}
}

// Command computes the invocation for the root selection.
//
// An absolute mainOverride replaces the declared entry point (resolved
// under the implementation root); a relative one is resolved against the
// declared entry point's directory. Without any entry point the
// implementation is a plain library and cannot run; that is reported
// before any filesystem check. A wrapper turns the invocation into
// `<shell> -c '<wrapper> "$@"' - <entry point> <args...>`.
func (l *Launcher) Command(sels *selections.Selections, args []string, mainOverride, wrapper string) (Invocation, error) {
	root, err := sels.Root()
	if err != nil {
		return Invocation{}, err
	}

	var progPath string
	if root.IsPackage() {
		main := mainOverride
		if main == "" {
			main = root.Main
		}
		if main == "" {
			return Invocation{}, fmt.Errorf("%w: %s is a library (no main)", ErrNotExecutable, root.ID)
		}
		progPath = main
	} else {
		main := mainOverride
		switch {
		case main == "":
			main = root.Main
		case strings.HasPrefix(main, "/"):
			main = strings.TrimPrefix(main, "/")
		case root.Main != "":
			main = filepath.Join(filepath.Dir(root.Main), main)
		}
		if main == "" {
			return Invocation{}, fmt.Errorf("%w: %s is a library (no main)", ErrNotExecutable, root.ID)
		}
		implDir, err := implementationPath(root, l.store)
		if err != nil {
			return Invocation{}, err
		}
		progPath = filepath.Join(implDir, main)
	}

	if _, err := os.Stat(progPath); err != nil {
		return Invocation{}, fmt.Errorf("%w: %s (implementation %s)", ErrMissingFile, progPath, root.ID)
	}

	inv := Invocation{Path: progPath, Args: args}
	if wrapper != "" {
		inv = Invocation{
			Path: l.shell,
			Args: append([]string{"-c", wrapper + ` "$@"`, "-", progPath}, args...),
		}
	}
	return inv, nil
}

// Exec replaces the current process image with the invocation. It does not
// return on success.
func (l *Launcher) Exec(inv Invocation) error {
	observability.RecordLaunch("live")
	l.log.Info().Str("path", inv.Path).Msg("executing")
	os.Stdout.Sync()
	os.Stderr.Sync()

	argv := append([]string{inv.Path}, inv.Args...)
	if err := syscall.Exec(inv.Path, argv, os.Environ()); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLaunchFailed, inv.Path, err)
	}
	return nil
}

// Test runs the invocation in an isolated child process, combining its
// stdout and stderr, and reports a non-zero exit as a trailing line rather
// than an error. The caller's own streams stay untouched.
func (l *Launcher) Test(inv Invocation) (string, error) {
	observability.RecordLaunch("test")

	var output bytes.Buffer
	cmd := exec.Command(inv.Path, inv.Args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		fmt.Fprintf(&output, "Error from child process: exit code = %d\n", exitErr.ExitCode())
	default:
		return "", fmt.Errorf("%w: %s: %v", ErrLaunchFailed, inv.Path, err)
	}
	return output.String(), nil
}
