package internal

import "context"

// Effect observes a single node, calling fn with each output it publishes.
// Its own output is always empty.
type Effect struct {
	*Computed
}

func (r *Runtime) NewEffect(cfg NodeConfig, fn func(any), source *Node) *Effect {
	c := r.NewComputed(cfg, func(_ context.Context, args []any) (any, error) {
		fn(args[0])
		return nil, ErrNoOutput
	}, []*Node{source})

	return &Effect{Computed: c}
}
