// Command playbook is the command-line front end for the step execution
// engine: argument parsing, logger setup, and process-exit plumbing. The
// engine itself lives in internal/engine; this file only wires it up.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aleozlx/playbook-go/internal/closure"
	"github.com/aleozlx/playbook-go/internal/engine"
	"github.com/aleozlx/playbook-go/internal/guest"
	"github.com/aleozlx/playbook-go/internal/infra"
	"github.com/aleozlx/playbook-go/internal/logger"
	"github.com/aleozlx/playbook-go/internal/playbook"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

func main() {
	if idLine, ok := infra.ShouldImpersonate(); ok {
		if err := infra.Impersonate(idLine, os.Args[0], os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(pberrors.ErrSys.Code())
		}
		// Impersonate only returns on failure; syscall.Exec replaces this
		// process on success and never returns here.
	}
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	var argResume string
	var verbosity int

	root := &cobra.Command{
		Use:           "playbook <playbook.yml>",
		Short:         "Run a declarative step playbook",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlaybook(args[0], argResume, verbosity)
		},
	}
	root.Flags().StringVar(&argResume, "arg-resume", "", "resume token for re-entry into a container or fork child")
	root.Flags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v, -vv, -vvv)")
	root.SetArgs(argv)

	if err := root.Execute(); err != nil {
		var exitErr exitError
		if errors.As(err, &exitErr) {
			return exitErr.code.Code()
		}
		fmt.Fprintln(os.Stderr, err)
		return pberrors.ErrApp.Code()
	}
	return pberrors.Success.Code()
}

func runPlaybook(playbookPath, argResume string, verbosity int) error {
	level := "info"
	verbosityFlag := ""
	switch {
	case verbosity >= 3:
		level = "trace"
		verbosityFlag = "-vvv"
	case verbosity == 2:
		level = "debug"
		verbosityFlag = "-vv"
	case verbosity == 1:
		level = "debug"
		verbosityFlag = "-v"
	}

	logDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		logDir = filepath.Join(home, ".playbook", "log")
	}

	log, err := logger.New(logger.Options{Level: level, LogDir: logDir})
	if err != nil {
		return err
	}

	doc, err := playbook.Load(playbookPath)
	if err != nil {
		log.Error(err, "failed to load playbook")
		return exitError{pberrors.ErrYML}
	}

	backendMap := map[string]infra.Backend{
		"docker": infra.NewLocalBackend(log),
	}
	if kubeconfig := os.Getenv("KUBECONFIG"); kubeconfig != "" {
		if client, err := infra.NewClusterClient(kubeconfig); err != nil {
			log.Warn("cluster backend unavailable: " + err.Error())
		} else {
			cwd, _ := os.Getwd()
			backendMap["cluster"] = infra.NewClusterBackend(client, os.Getenv("PLAYBOOK_K8S_NAMESPACE"), cwd, log)
		}
	}
	backends := infra.NewRegistry(backendMap)

	runner := engine.New(doc, playbookPath, verbosityFlag, backends, &guest.ProcessAdapter{Log: log}, log)

	var cl closure.Closure
	if argResume != "" {
		cl, err = closure.Decode(argResume)
		if err != nil {
			log.Error(err, "failed to decode resume token")
			return exitError{pberrors.ErrApp}
		}
	} else {
		cl = closure.New(0, doc.Global)
	}

	code := runner.Run(cl)
	if !code.IsSuccess() {
		return exitError{code}
	}
	return nil
}

// exitError carries an ExitCode through cobra's error-returning RunE so the
// top-level run() can translate it into a process exit status without
// cobra printing a redundant error line.
type exitError struct {
	code pberrors.ExitCode
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code.Code())
}
