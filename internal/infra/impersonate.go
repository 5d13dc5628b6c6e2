package infra

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"syscall"

	"golang.org/x/sys/unix"
)

// idLineRegex matches the `id` command's default output, e.g.
// "uid=1000(alice) gid=1000(alice) groups=1000(alice)".
var idLineRegex = regexp.MustCompile(`uid=(\d+)\([^)]*\)\s+gid=(\d+)\([^)]*\)`)

// ImpersonateEnvVar is the environment variable the local backend's
// impersonate=dynamic branch sets to carry the invoking identity into the
// container's root-started entrypoint.
const ImpersonateEnvVar = "IMPERSONATE"

// ShouldImpersonate reports whether this process should perform the
// drop-privilege handshake: it is running inside a container, as root, with
// IMPERSONATE set.
func ShouldImpersonate() (idLine string, ok bool) {
	idLine = os.Getenv(ImpersonateEnvVar)
	if idLine == "" {
		return "", false
	}
	if os.Geteuid() != 0 {
		return "", false
	}
	if !InsideContainer() {
		return "", false
	}
	return idLine, true
}

// Impersonate parses the uid/gid out of idLine, drops root privilege via
// setgid/setuid, and re-execs argv0 with args — the Go analogue of the
// original's `--entrypoint /usr/bin/playbook` re-entry trick, which ran as
// root only long enough to read its own identity before stepping down.
func Impersonate(idLine, argv0 string, args []string) error {
	matches := idLineRegex.FindStringSubmatch(idLine)
	if matches == nil {
		return fmt.Errorf("infra: malformed IMPERSONATE identity line: %q", idLine)
	}

	var uid, gid int
	if _, err := fmt.Sscanf(matches[1], "%d", &uid); err != nil {
		return fmt.Errorf("infra: invalid uid in IMPERSONATE line: %w", err)
	}
	if _, err := fmt.Sscanf(matches[2], "%d", &gid); err != nil {
		return fmt.Errorf("infra: invalid gid in IMPERSONATE line: %w", err)
	}

	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("infra: setgid(%d) failed: %w", gid, err)
	}
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("infra: setuid(%d) failed: %w", uid, err)
	}

	path, err := resolveEntrypoint(argv0)
	if err != nil {
		return err
	}

	env := os.Environ()
	return syscall.Exec(path, append([]string{path}, args...), env)
}

// resolveEntrypoint turns argv0 (which may be a bare name found via the
// shell's own $PATH search, e.g. os.Args[0] == "playbook") into an absolute
// path syscall.Exec can use directly: exec.LookPath if argv0 has no
// directory separator, os.Stat verification otherwise.
func resolveEntrypoint(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("infra: empty entrypoint path")
	}
	if filepath.Base(name) == name {
		return exec.LookPath(name)
	}
	if _, err := os.Stat(name); err != nil {
		return "", fmt.Errorf("infra: entrypoint %q not found: %w", name, err)
	}
	return filepath.Abs(name)
}
