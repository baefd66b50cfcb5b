// Package chains provides the contract artifact model and the builders that
// load artifacts produced by different build tools.
package chains

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pendergraft/deployer/internal/validation"
)

// Artifact validation errors
var (
	ErrEmptyABI        = errors.New("artifact has an empty ABI")
	ErrEmptyBytecode   = errors.New("artifact has no bytecode (likely an interface or abstract contract)")
	ErrUnlinkedLibrary = errors.New("artifact bytecode has unlinked library placeholders")
	ErrUnknownFormat   = errors.New("unrecognized artifact format")
)

// Builder parses artifacts from a specific build tool
type Builder interface {
	// Metadata
	Name() string        // "metadata", "foundry"
	DisplayName() string // "Metadata JSON", "Foundry"
	Chain() string       // "evm"

	// Detect reports whether the file at artifactPath is in this builder's format
	Detect(artifactPath string) (bool, error)
	// Parse reads the artifact at artifactPath
	Parse(artifactPath string) (*Artifact, error)
}

// DiscoverOptions configures artifact discovery
type DiscoverOptions struct {
	// Contracts to include (empty = all)
	Contracts []string
	// Patterns to exclude (e.g., "Test", "Mock*")
	Exclude []string
}

// Artifact is a compiled contract ready for deployment
type Artifact struct {
	// Common metadata
	Name    string `json:"name"`
	Chain   string `json:"chain"`   // "evm"
	Builder string `json:"builder"` // builder that produced it

	EVM *EVMArtifact `json:"evm,omitempty"`
}

// EVMArtifact contains EVM-specific contract data
type EVMArtifact struct {
	SourcePath       string          `json:"sourcePath,omitempty"`
	License          string          `json:"license,omitempty"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         string          `json:"bytecode"`
	DeployedBytecode string          `json:"deployedBytecode,omitempty"`
	Compiler         EVMCompiler     `json:"compiler"`
}

// EVMCompiler contains EVM compiler details
type EVMCompiler struct {
	Version    string          `json:"version,omitempty"` // "0.8.20+commit.a1b2c3d4"
	Optimizer  OptimizerConfig `json:"optimizer"`
	EVMVersion string          `json:"evmVersion,omitempty"` // "paris", "shanghai"
	ViaIR      bool            `json:"viaIR,omitempty"`
}

// OptimizerConfig contains optimizer settings
type OptimizerConfig struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// Validate checks that the artifact carries a deployable interface and payload.
// Only presence and shape are checked; the ABI itself is parsed at deploy time.
func (a *Artifact) Validate() error {
	if a == nil || a.EVM == nil {
		return ErrUnknownFormat
	}
	abi := strings.TrimSpace(string(a.EVM.ABI))
	if abi == "" || abi == "null" || abi == "[]" {
		return ErrEmptyABI
	}
	code := strings.TrimSpace(a.EVM.Bytecode)
	if code == "" || code == "0x" {
		return ErrEmptyBytecode
	}
	if validation.HasLibraryPlaceholders(code) {
		return ErrUnlinkedLibrary
	}
	if err := validation.ValidateBytecode(code); err != nil {
		return fmt.Errorf("invalid bytecode: %w", err)
	}
	return nil
}

// BytecodeSize returns the size of the creation bytecode in bytes
func (a *Artifact) BytecodeSize() int {
	if a == nil || a.EVM == nil {
		return 0
	}
	return len(strings.TrimPrefix(a.EVM.Bytecode, "0x")) / 2
}

// Registry holds all registered builders
type Registry struct {
	builders map[string]Builder
	order    []string
}

// NewRegistry creates a new builder registry
func NewRegistry(builders ...Builder) *Registry {
	r := &Registry{
		builders: make(map[string]Builder),
	}
	for _, b := range builders {
		r.Register(b)
	}
	return r
}

// Register adds a builder to the registry. Detection probes builders in
// registration order.
func (r *Registry) Register(b Builder) {
	if _, exists := r.builders[b.Name()]; !exists {
		r.order = append(r.order, b.Name())
	}
	r.builders[b.Name()] = b
}

// Get retrieves a builder by name
func (r *Registry) Get(name string) (Builder, bool) {
	b, ok := r.builders[name]
	return b, ok
}

// Names returns the registered builder names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detect returns the first builder that recognizes the artifact file
func (r *Registry) Detect(artifactPath string) (Builder, error) {
	var firstErr error
	for _, name := range r.order {
		b := r.builders[name]
		ok, err := b.Detect(artifactPath)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return b, nil
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, artifactPath)
}

// Load detects the artifact format, parses it and validates the result
func (r *Registry) Load(artifactPath string) (*Artifact, error) {
	b, err := r.Detect(artifactPath)
	if err != nil {
		return nil, err
	}
	artifact, err := b.Parse(artifactPath)
	if err != nil {
		return nil, err
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return artifact, nil
}
