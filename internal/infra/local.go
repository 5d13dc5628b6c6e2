package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/aleozlx/playbook-go/internal/logger"
	"github.com/aleozlx/playbook-go/internal/pbcontext"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

// LocalBackend launches containers by shelling out to a docker-compatible
// CLI binary (fork/exec/wait), the direct Go analogue of a nix
// fork/execvp/waitpid triple.
type LocalBackend struct {
	// Binary is the container runtime executable name, defaulting to
	// "docker" when empty.
	Binary string
	log    *logger.Logger
}

// NewLocalBackend constructs a LocalBackend logging through log.
func NewLocalBackend(log *logger.Logger) *LocalBackend {
	return &LocalBackend{Binary: "docker", log: log}
}

// Launch renders spec into the runtime's flag table and runs argv inside the
// resulting container, blocking until it exits.
func (b *LocalBackend) Launch(ctx context.Context, spec pbcontext.Context, argv []string) (string, *pberrors.TaskError) {
	binary := b.Binary
	if binary == "" {
		binary = "docker"
	}

	args, taskErr := b.buildArgs(spec, argv)
	if taskErr != nil {
		return "", taskErr
	}

	cmdLine := formatCmd(append([]string{binary}, args...))
	if b.log != nil {
		b.log.Info(cmdLine)
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				return "", pberrors.NewSignalTaskError(status.Signal().String())
			}
			return "", pberrors.NewExitCodeTaskError(exitErr.ExitCode())
		}
		return "", pberrors.NewSystemTaskError("failed to issue the container command", err)
	}

	return cmdLine, nil
}

// buildArgs translates spec into the "docker run" flag table of §4.5,
// isolated from process execution so the flag table itself is directly
// testable.
func (b *LocalBackend) buildArgs(spec pbcontext.Context, argv []string) ([]string, *pberrors.TaskError) {
	image, err := spec.UnpackString("image")
	if err != nil {
		return nil, pberrors.NewInternalTaskError("the container image specification was invalid")
	}

	currentUser, userErr := user.Current()
	if userErr != nil {
		return nil, pberrors.NewInternalTaskError("failed to identify the invoking user")
	}
	home := currentUser.HomeDir
	if home == "" {
		home = "/home/" + currentUser.Username
	}

	args := []string{"run", "--init", "--rm"}

	interactive := true
	if v, ok := spec.Get("interactive"); ok {
		if b, ok := v.AsBool(); ok {
			interactive = b
		}
	}
	if interactive {
		args = append(args, "-it")
	}

	args = append(args, "--cap-drop=ALL")

	if runtime, err := spec.UnpackString("runtime"); err == nil {
		args = append(args, "--runtime="+runtime)
	}
	if ipc, err := spec.UnpackString("ipc"); err == nil {
		args = append(args, "--ipc", ipc)
	}
	if network, err := spec.UnpackString("network"); err == nil {
		args = append(args, "--network", network)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, pberrors.NewSystemTaskError("failed to resolve the working directory", err)
	}
	args = append(args, "-v", fmt.Sprintf("%s:%s/current-ro:ro", cwd, home))
	args = append(args, "-w", home+"/current-ro")

	if volumes, err := spec.UnpackStringArray("volumes"); err == nil {
		for _, vol := range volumes {
			if rendered, ok := renderVolume(vol); ok {
				args = append(args, "-v", rendered)
			}
		}
	}

	if ports, err := spec.UnpackStringArray("ports"); err == nil {
		for _, p := range ports {
			args = append(args, "-p", p)
		}
	}

	gui := false
	if v, ok := spec.Get("gui"); ok {
		if bv, ok := v.AsBool(); ok {
			gui = bv
		}
	}
	if gui {
		args = append(args,
			"--network", "host", "-e", "DISPLAY",
			"-v", "/tmp/.X11-unix:/tmp/.X11-unix:rw",
			"-v", fmt.Sprintf("%s/.Xauthority:%s/.Xauthority:ro", home, home),
		)
	}

	if envs, err := spec.UnpackStringArray("environment"); err == nil {
		for _, e := range envs {
			args = append(args, "-e", e)
		}
	}

	switch impersonate, err := spec.UnpackString("impersonate"); {
	case err == nil && impersonate == "dynamic":
		idLine, idErr := currentIDLine()
		if idErr != nil {
			return nil, pberrors.NewInternalTaskError("failed to capture the invoking identity for IMPERSONATE")
		}
		args = append(args,
			"--cap-add=SETUID", "--cap-add=SETGID", "--cap-add=CHOWN",
			"-u", "root",
			"-e", "IMPERSONATE="+idLine,
			"--entrypoint", "/usr/bin/playbook",
		)
	case err == nil:
		args = append(args, "-u", impersonate)
	default:
		args = append(args, "-u", fmt.Sprintf("%s:%s", currentUser.Uid, currentUser.Gid))
	}

	if name, err := spec.UnpackString("name"); err == nil {
		args = append(args, "--name="+name)
	}

	args = append(args, image)
	args = append(args, argv...)

	return args, nil
}

// renderVolume canonicalizes the host-side path of a HOST:CONT[:mode]
// volume spec and defaults the mode suffix to read-only.
func renderVolume(vol string) (string, bool) {
	i := strings.Index(vol, ":")
	if i < 0 {
		return "", false
	}
	src, dst := vol[:i], vol[i:]
	suffix := ""
	if !strings.HasSuffix(dst, ":ro") && !strings.HasSuffix(dst, ":rw") &&
		!strings.HasSuffix(dst, ":z") && !strings.HasSuffix(dst, ":Z") {
		suffix = ":ro"
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", false
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		resolved = abs
	}
	return resolved + dst + suffix, true
}

func currentIDLine() (string, error) {
	out, err := exec.Command("id").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func formatCmd(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if strings.Contains(a, " ") {
			parts[i] = `"` + a + `"`
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}

// InsideContainer reports whether the current process is running inside a
// Docker container, by sniffing the init process's cgroup membership.
func InsideContainer() bool {
	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false
	}
	return bytes.Contains(data, []byte("docker"))
}
