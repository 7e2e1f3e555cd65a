// Package source defines the mapping between editor-visible source
// locations and engine-side runtime locations.
//
// Source-map resolution mechanics live outside the adapter core; the core
// only consumes a Mapper. A mapping failure means "breakpoint cannot be
// verified" on the way in and "frame has no mapped source" on the way out.
package source

import (
	"fmt"

	"github.com/tmajors/dapbridge/pkg/types"
)

// Mapper converts between source and runtime locations.
type Mapper interface {
	ToRuntime(loc types.Location) (types.RuntimeLocation, error)
	ToSource(loc types.RuntimeLocation) (types.Location, error)
}

// Identity maps paths to script ids verbatim. It serves engines that
// identify scripts by filesystem path, and is the default when no source
// maps are configured.
type Identity struct{}

func (Identity) ToRuntime(loc types.Location) (types.RuntimeLocation, error) {
	if loc.Path == "" {
		return types.RuntimeLocation{}, fmt.Errorf("cannot map location without a path")
	}
	return types.RuntimeLocation{ScriptID: loc.Path, Line: loc.Line, Column: loc.Column}, nil
}

func (Identity) ToSource(loc types.RuntimeLocation) (types.Location, error) {
	if loc.ScriptID == "" {
		return types.Location{}, fmt.Errorf("cannot map runtime location without a script id")
	}
	return types.Location{Path: loc.ScriptID, Line: loc.Line, Column: loc.Column}, nil
}
