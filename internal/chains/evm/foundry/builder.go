// Package foundry provides the Foundry builder for EVM contracts.
package foundry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pendergraft/deployer/internal/chains"
)

// Builder implements chains.Builder for Foundry artifacts
type Builder struct{}

// New creates a new Foundry builder
func New() *Builder {
	return &Builder{}
}

// Name returns the builder identifier
func (b *Builder) Name() string {
	return "foundry"
}

// DisplayName returns a human-readable name
func (b *Builder) DisplayName() string {
	return "Foundry"
}

// Chain returns the chain this builder targets
func (b *Builder) Chain() string {
	return "evm"
}

// ConfigFile returns the config file name
func (b *Builder) ConfigFile() string {
	return "foundry.toml"
}

// DetectProject checks if a directory is a Foundry project
func (b *Builder) DetectProject(dir string) (bool, error) {
	configPath := filepath.Join(dir, b.ConfigFile())
	_, err := os.Stat(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Detect reports whether the file is a Foundry artifact (bytecode is an object)
func (b *Builder) Detect(artifactPath string) (bool, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return false, err
	}

	var probe struct {
		ABI      json.RawMessage `json:"abi"`
		Bytecode json.RawMessage `json:"bytecode"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false, nil
	}
	if len(probe.ABI) == 0 || len(probe.Bytecode) == 0 {
		return false, nil
	}
	var obj BytecodeObject
	return json.Unmarshal(probe.Bytecode, &obj) == nil, nil
}

// Discover finds deployable contract artifacts in a Foundry project
func (b *Builder) Discover(dir string, opts chains.DiscoverOptions) ([]string, error) {
	outDir := filepath.Join(dir, "out")

	// Check if out directory exists
	if _, err := os.Stat(outDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("out directory not found - run 'forge build' first")
	}

	var artifacts []string
	seen := make(map[string]bool) // Track seen contract names to avoid duplicates

	err := filepath.Walk(outDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip directories and non-JSON files
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}

		// Skip build-info files
		if strings.Contains(path, "build-info") {
			return nil
		}

		// Get contract name from path (out/{Source}.sol/{Contract}.json)
		parentDir := filepath.Dir(path)
		if !strings.HasSuffix(parentDir, ".sol") {
			return nil
		}

		contractName := strings.TrimSuffix(info.Name(), ".json")
		if seen[contractName] {
			return nil
		}

		if len(opts.Contracts) > 0 && !containsFold(opts.Contracts, contractName) {
			return nil
		}
		if isExcluded(contractName, opts.Exclude) {
			return nil
		}

		// Interfaces and abstract contracts cannot be deployed
		raw, err := readArtifact(path)
		if err != nil {
			return nil // Skip artifacts we can't read
		}
		if raw.Bytecode.Object == "" || raw.Bytecode.Object == "0x" {
			return nil
		}

		seen[contractName] = true
		artifacts = append(artifacts, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(artifacts)
	return artifacts, nil
}

// FindArtifact returns the artifact path for a named contract in a Foundry project
func (b *Builder) FindArtifact(dir, contractName string) (string, error) {
	paths, err := b.Discover(dir, chains.DiscoverOptions{Contracts: []string{contractName}})
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("contract %s not found in %s (is it an interface, or not built?)", contractName, filepath.Join(dir, "out"))
	}
	return paths[0], nil
}

// Parse parses a Foundry artifact file
func (b *Builder) Parse(artifactPath string) (*chains.Artifact, error) {
	raw, err := readArtifact(artifactPath)
	if err != nil {
		return nil, err
	}

	// Skip if no bytecode (interfaces, libraries without code)
	if raw.Bytecode.Object == "" || raw.Bytecode.Object == "0x" {
		return nil, chains.ErrEmptyBytecode
	}
	if len(raw.Bytecode.LinkReferences) > 0 {
		return nil, fmt.Errorf("%w: %s", chains.ErrUnlinkedLibrary, strings.Join(raw.Bytecode.linkedLibraries(), ", "))
	}

	// Parse metadata
	var metadata FoundryMetadata
	if raw.RawMetadata != "" {
		_ = json.Unmarshal([]byte(raw.RawMetadata), &metadata) // Non-fatal, continue without metadata
	}

	// Extract contract name from path
	contractName := strings.TrimSuffix(filepath.Base(artifactPath), ".json")

	return &chains.Artifact{
		Name:    contractName,
		Chain:   "evm",
		Builder: b.Name(),
		EVM: &chains.EVMArtifact{
			SourcePath:       getFirstKey(metadata.Settings.CompilationTarget),
			License:          metadata.Sources.FirstLicense(),
			ABI:              raw.ABI,
			Bytecode:         raw.Bytecode.Object,
			DeployedBytecode: raw.DeployedBytecode.Object,
			Compiler: chains.EVMCompiler{
				Version:    metadata.Compiler.Version,
				EVMVersion: metadata.Settings.EVMVersion,
				ViaIR:      metadata.Settings.ViaIR,
				Optimizer: chains.OptimizerConfig{
					Enabled: metadata.Settings.Optimizer.Enabled,
					Runs:    metadata.Settings.Optimizer.Runs,
				},
			},
		},
	}, nil
}

func readArtifact(artifactPath string) (*FoundryArtifact, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	var raw FoundryArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing artifact JSON: %w", err)
	}
	return &raw, nil
}

// FoundryArtifact represents the structure of a Foundry artifact JSON file
type FoundryArtifact struct {
	ABI              json.RawMessage `json:"abi"`
	Bytecode         BytecodeObject  `json:"bytecode"`
	DeployedBytecode BytecodeObject  `json:"deployedBytecode"`
	RawMetadata      string          `json:"rawMetadata"`
}

// BytecodeObject represents bytecode in a Foundry artifact
type BytecodeObject struct {
	Object         string                       `json:"object"`
	SourceMap      string                       `json:"sourceMap"`
	LinkReferences map[string]map[string][]Link `json:"linkReferences"`
}

// linkedLibraries returns "source:Library" for every link reference, sorted
func (o BytecodeObject) linkedLibraries() []string {
	var libs []string
	for source, names := range o.LinkReferences {
		for name := range names {
			libs = append(libs, source+":"+name)
		}
	}
	sort.Strings(libs)
	return libs
}

// Link represents a library link reference
type Link struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// FoundryMetadata represents the parsed rawMetadata field
type FoundryMetadata struct {
	Compiler CompilerMeta `json:"compiler"`
	Language string       `json:"language"`
	Settings SettingsMeta `json:"settings"`
	Sources  SourcesMeta  `json:"sources"`
}

// CompilerMeta contains compiler information
type CompilerMeta struct {
	Version string `json:"version"`
}

// SettingsMeta contains compiler settings
type SettingsMeta struct {
	CompilationTarget map[string]string `json:"compilationTarget"`
	EVMVersion        string            `json:"evmVersion"`
	Optimizer         OptimizerMeta     `json:"optimizer"`
	ViaIR             bool              `json:"viaIR"`
}

// OptimizerMeta contains optimizer settings
type OptimizerMeta struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs"`
}

// SourcesMeta contains source file information
type SourcesMeta map[string]SourceMeta

// SourceMeta contains individual source file info
type SourceMeta struct {
	Keccak256 string `json:"keccak256"`
	License   string `json:"license"`
}

// FirstLicense returns the first license found in sources
func (s SourcesMeta) FirstLicense() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s[k].License != "" {
			return s[k].License
		}
	}
	return ""
}

// getFirstKey returns the first key from a map
func getFirstKey(m map[string]string) string {
	for k := range m {
		return k
	}
	return ""
}

func containsFold(list []string, name string) bool {
	for _, c := range list {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// isExcluded matches a contract name against suffix, prefix or glob patterns
func isExcluded(name string, patterns []string) bool {
	for _, pattern := range patterns {
		// Check suffix match (e.g., "Test" matches "MyContractTest")
		if strings.HasSuffix(name, pattern) {
			return true
		}
		// Check prefix match (e.g., "Mock" matches "MockToken")
		if strings.HasPrefix(name, pattern) {
			return true
		}
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
