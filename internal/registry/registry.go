// Package registry holds the static mapping from model identifiers to their
// resource descriptors. The registry has no mutable state: it is built once
// at process start from the built-in table plus optional on-disk discovery.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rembgd/internal/common/fsutil"
	"rembgd/internal/device"
	"rembgd/pkg/types"
)

// Built-in model identifiers.
const (
	DefaultModelID     = "isnet-general"
	ConstrainedModelID = "isnet-small"
)

// builtin is the descriptor table for models the daemon knows how to run
// without discovery. WeightsPath is empty: the reference runtime synthesizes
// these models without external weights.
var builtin = []types.Model{
	{
		ID:        DefaultModelID,
		Name:      "ISNet (general purpose)",
		Preferred: types.BackendGPU,
		Fallback:  types.BackendCPU,
		Output:    types.OutputRGBA,
		InputSide: 320,
	},
	{
		ID:          ConstrainedModelID,
		Name:        "ISNet (small, constrained platforms)",
		Preferred:   types.BackendCPU,
		Fallback:    types.BackendCPU,
		Output:      types.OutputAlphaMask,
		InputSide:   224,
		Constrained: true,
	},
}

// Registry is an immutable set of model descriptors.
type Registry struct {
	models []types.Model
}

// New builds a registry from the built-in table.
func New() *Registry {
	return &Registry{models: append([]types.Model(nil), builtin...)}
}

// LoadDir builds a registry from the built-in table plus any *.onnx weight
// files found in dir. The file stem becomes the model id; discovered models
// default to GPU-preferred RGBA output at 320px input.
func LoadDir(dir string) (*Registry, error) {
	r := New()
	if dir == "" {
		return r, nil
	}
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".onnx") {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if _, ok := r.ByID(id); ok {
			// Built-in ids win; on-disk duplicates are ignored.
			continue
		}
		r.models = append(r.models, types.Model{
			ID:          id,
			Name:        id,
			WeightsPath: filepath.Join(abs, name),
			Preferred:   types.BackendGPU,
			Fallback:    types.BackendCPU,
			Output:      types.OutputRGBA,
			InputSide:   320,
		})
	}
	return r, nil
}

// ByID looks up a model descriptor.
func (r *Registry) ByID(id string) (types.Model, bool) {
	for _, m := range r.models {
		if m.ID == id {
			return m, true
		}
	}
	return types.Model{}, false
}

// Default returns the model the capabilities call for: constrained platforms
// always get the small CPU model, everything else the general default.
func (r *Registry) Default(caps device.Capabilities) types.Model {
	id := DefaultModelID
	if caps.ConstrainedPlatform {
		id = ConstrainedModelID
	}
	mdl, _ := r.ByID(id)
	return mdl
}

// List returns a copy of all descriptors to avoid external mutation.
func (r *Registry) List() []types.Model {
	out := make([]types.Model, len(r.models))
	copy(out, r.models)
	return out
}
