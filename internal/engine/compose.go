package engine

import "github.com/aleozlx/playbook-go/internal/pbcontext"

// compose derives the effective context for a step per the composition
// algebra: global ⨁ step_raw ⨁ args ⨁ ctx_states, right-biased overlay.
// When resuming is true (the process was re-invoked with --arg-resume), a
// second-pass rewrite lifts docker.vars up one level and removes docker
// entirely: the container's own view of the playbook should not see the
// host's container spec, only the overrides the host promised it.
func compose(global, stepRaw, args, ctxStates pbcontext.Context, resuming bool) pbcontext.Context {
	partial := global.Overlay(stepRaw).Overlay(args).Overlay(ctxStates)

	if resuming {
		if docker, ok := partial.Subcontext("docker"); ok {
			if vars, ok := docker.Subcontext("vars"); ok {
				partial = partial.Overlay(vars)
			}
		}
		partial = partial.Hide("docker")
	}

	return partial
}
