// Package playbook loads a YAML playbook document into the engine's root
// context: a global context plus an ordered list of step contexts.
package playbook

import (
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

var validate = validator.New()

// rawStep is a minimal structural shape used only to pre-validate that
// every step declares a non-empty `action` before the document is walked
// into the dynamic Context tree; it carries none of a step's other keys.
type rawStep struct {
	Action string `yaml:"action" validate:"required"`
}

type rawDoc struct {
	Steps []rawStep `yaml:"steps" validate:"required,min=1,dive"`
}

// Document is a loaded playbook: its global context (the root document
// minus the `steps` key) and its ordered step contexts.
type Document struct {
	Global pbcontext.Context
	Steps  []pbcontext.Context
}

// Load reads and validates the playbook at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pberrors.NewParseError(path, 0, err)
	}

	var raw rawDoc
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, pberrors.NewParseError(path, extractLine(err), err)
	}
	if err := validate.Struct(raw); err != nil {
		return nil, pberrors.NewValidationError("steps", "each step requires a non-empty `action`", err)
	}

	root, err := pbcontext.FromYAML(data)
	if err != nil {
		return nil, pberrors.NewParseError(path, extractLine(err), err)
	}

	steps, ok := root.ListContexts("steps")
	if !ok {
		return nil, pberrors.NewValidationError("steps", "must be an array of mappings", nil)
	}

	return &Document{
		Global: root.Hide("steps"),
		Steps:  steps,
	}, nil
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}
	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}
	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}
