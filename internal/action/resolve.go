// Package action resolves a step's "action" key against the built-in set
// and a playbook's source whitelist: the symbol-scan mechanism that decides
// whether a step is handled in-process or dispatched to guest source code.
package action

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"

	"github.com/aleozlx/playbook-go/internal/logger"
	"github.com/aleozlx/playbook-go/internal/pbcontext"
)

// Origin classifies how an action was resolved.
type Origin int

const (
	// Unresolved means the action name matched neither a built-in nor any
	// whitelist entry's declared symbols.
	Unresolved Origin = iota
	// BuiltIn means the action is one of the engine's own built-in steps.
	BuiltIn
	// User means the action was found declared via a #[playbook(NAME)]
	// marker in one of the whitelist's source files.
	User
)

// Resolution is the outcome of resolving a step's action.
type Resolution struct {
	Action string
	Origin Origin
	// Source, when Origin == User, is the whitelist entry that declared the
	// symbol, with its "src" key rewritten to the path resolved relative to
	// the playbook directory.
	Source pbcontext.Context
}

var builtinActions = map[string]bool{
	"sys_exit":    true,
	"sys_shell":   true,
	"sys_vars":    true,
	"sys_fork":    true,
	"sys_ctxdump": true,
}

// IsBuiltin reports whether name names one of the engine's built-in steps.
func IsBuiltin(name string) bool {
	return builtinActions[name]
}

var symbolPattern = regexp.MustCompile(`^#\[playbook\((\w+)\)\]`)

// symbols scans a source file for #[playbook(NAME)] markers and returns the
// set of declared action names.
func symbols(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	found := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if m := symbolPattern.FindStringSubmatch(scanner.Text()); m != nil {
			found[m[1]] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return found, nil
}

// Resolve classifies a step's action. playbookPath is used to resolve each
// whitelist entry's "src" relative to the playbook's own directory, matching
// the resolver law from the engine's testable properties: Built-in iff
// action is in the built-in set; User iff some whitelist entry's source
// file declares a symbol equal to action. Whitelist entries whose source
// file cannot be read are logged at warning level and skipped, per the
// resolver's read-error policy; log may be nil.
func Resolve(action string, whitelist []pbcontext.Context, playbookPath string, log *logger.Logger) Resolution {
	if IsBuiltin(action) {
		return Resolution{Action: action, Origin: BuiltIn}
	}

	playbookDir := filepath.Dir(playbookPath)
	for _, entry := range whitelist {
		srcRel, err := entry.UnpackString("src")
		if err != nil {
			continue
		}
		srcPath := filepath.Join(playbookDir, srcRel)
		found, err := symbols(srcPath)
		if err != nil {
			if log != nil {
				log.Warn("IO Error: " + srcPath)
			}
			continue
		}
		if found[action] {
			return Resolution{
				Action: action,
				Origin: User,
				Source: entry.Set("src", pbcontext.String(srcPath)),
			}
		}
	}

	return Resolution{Action: action, Origin: Unresolved}
}
