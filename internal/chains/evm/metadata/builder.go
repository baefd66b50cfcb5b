// Package metadata provides the builder for flat metadata artifacts: a JSON
// document with an "abi" array and a hex "bytecode" string, as emitted by
// generic compile scripts.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pendergraft/deployer/internal/chains"
)

// Artifact is the on-disk shape of a metadata artifact
type Artifact struct {
	ContractName string          `json:"contractName,omitempty"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

// Builder implements chains.Builder for metadata artifacts
type Builder struct{}

// New creates a new metadata builder
func New() *Builder {
	return &Builder{}
}

// Name returns the builder identifier
func (b *Builder) Name() string {
	return "metadata"
}

// DisplayName returns a human-readable name
func (b *Builder) DisplayName() string {
	return "Metadata JSON"
}

// Chain returns the chain this builder targets
func (b *Builder) Chain() string {
	return "evm"
}

// Detect reports whether the file has a top-level ABI and a string bytecode
func (b *Builder) Detect(artifactPath string) (bool, error) {
	raw, err := readArtifact(artifactPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, err
		}
		return false, nil
	}
	if len(raw.ABI) == 0 || len(raw.Bytecode) == 0 {
		return false, nil
	}
	var code string
	return json.Unmarshal(raw.Bytecode, &code) == nil, nil
}

// Parse parses a metadata artifact file
func (b *Builder) Parse(artifactPath string) (*chains.Artifact, error) {
	raw, err := readArtifact(artifactPath)
	if err != nil {
		return nil, err
	}

	var code string
	if err := json.Unmarshal(raw.Bytecode, &code); err != nil {
		return nil, fmt.Errorf("parsing bytecode: expected a hex string: %w", err)
	}

	name := raw.ContractName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(artifactPath), filepath.Ext(artifactPath))
	}

	code = strings.TrimSpace(code)
	if code != "" && !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}

	return &chains.Artifact{
		Name:    name,
		Chain:   "evm",
		Builder: b.Name(),
		EVM: &chains.EVMArtifact{
			ABI:      raw.ABI,
			Bytecode: code,
		},
	}, nil
}

func readArtifact(artifactPath string) (*Artifact, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, err
	}

	var raw Artifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}
	return &raw, nil
}
