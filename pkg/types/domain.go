package types

// Backend is the execution strategy used to run a model.
type Backend string

const (
	// BackendGPU runs inference on a hardware accelerator.
	BackendGPU Backend = "gpu"
	// BackendCPU is the always-available fallback.
	BackendCPU Backend = "cpu"
)

// OutputFormat describes the per-pixel output a model produces.
type OutputFormat string

const (
	// OutputAlphaMask is a hard foreground mask applied as binary alpha.
	OutputAlphaMask OutputFormat = "alpha-mask"
	// OutputRGBA is a soft matte blended into the alpha channel.
	OutputRGBA OutputFormat = "rgba"
)

// Model describes a background-removal model known to the registry.
// Descriptors are immutable: defined at process start, only read afterwards.
type Model struct {
	// Stable identifier for the model.
	// example: isnet-general
	ID string `json:"id" example:"isnet-general"`
	// Human-friendly name.
	// example: ISNet (general purpose)
	Name string `json:"name" example:"ISNet (general purpose)"`
	// Absolute path to the weights file on disk. Empty for the built-in
	// reference runtime.
	// example: /home/user/models/isnet-general.onnx
	WeightsPath string `json:"weights_path,omitempty" example:"/home/user/models/isnet-general.onnx"`
	// Backend the model was exported for.
	// example: gpu
	Preferred Backend `json:"preferred_backend" example:"gpu"`
	// Backend used when the preferred one is unavailable.
	// example: cpu
	Fallback Backend `json:"fallback_backend" example:"cpu"`
	// Output semantics of the model head.
	// example: rgba
	Output OutputFormat `json:"output_format" example:"rgba"`
	// Side length in pixels of the square input the model expects.
	// example: 320
	InputSide int `json:"input_side" example:"320"`
	// Whether the model is small enough for constrained (mobile-class)
	// platforms.
	// example: false
	Constrained bool `json:"constrained,omitempty" example:"false"`
}
