package cellwrap

import "github.com/cellwrap/cellwrap/internal/wire"

// MethodPolicy is the frozen, per-method set of payload-transport settings
// (spec §3/§4.1): whether arguments, results, block arguments and block
// results move (transfer ownership) or copy (deep-clone) across the call
// boundary, plus whether blocks run in the server's worker or are relayed
// back to the caller.
type MethodPolicy = wire.MethodPolicy

// PolicyOption configures one field of a MethodPolicy being built by
// ConfigureMethod; it mirrors the Option closure-struct pattern used for
// top-level construction (see options.go), scoped to a single method.
type PolicyOption struct {
	apply func(*wire.Overrides)
}

func moveOverride(set func(*wire.Overrides, *bool), v bool) PolicyOption {
	return PolicyOption{apply: func(o *wire.Overrides) { set(o, &v) }}
}

// MoveArguments overrides move_arguments for this method, regardless of the
// wrapper-wide default.
func MoveArguments(move bool) PolicyOption {
	return moveOverride(func(o *wire.Overrides, v *bool) { o.MoveArguments = v }, move)
}

// MoveResults overrides move_results for this method.
func MoveResults(move bool) PolicyOption {
	return moveOverride(func(o *wire.Overrides, v *bool) { o.MoveResults = v }, move)
}

// MoveBlockArguments overrides move_block_arguments for this method.
func MoveBlockArguments(move bool) PolicyOption {
	return moveOverride(func(o *wire.Overrides, v *bool) { o.MoveBlockArguments = v }, move)
}

// MoveBlockResults overrides move_block_results for this method.
func MoveBlockResults(move bool) PolicyOption {
	return moveOverride(func(o *wire.Overrides, v *bool) { o.MoveBlockResults = v }, move)
}

// ExecuteBlocksInPlace overrides execute_blocks_in_place for this method.
// Omitting it leaves the method running blocks in place iff the
// wrapper-wide default does.
func ExecuteBlocksInPlace(v bool) PolicyOption {
	return moveOverride(func(o *wire.Overrides, p *bool) { o.ExecuteBlocksInPlace = p }, v)
}
