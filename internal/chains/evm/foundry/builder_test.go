package foundry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/deployer/internal/chains"
)

// writeArtifact writes out/<source>/<name>.json under dir
func writeArtifact(t *testing.T, dir, source, name string, artifact map[string]any) string {
	t.Helper()
	sourceDir := filepath.Join(dir, "out", source)
	require.NoError(t, os.MkdirAll(sourceDir, 0755))

	artifactBytes, err := json.Marshal(artifact)
	require.NoError(t, err)

	path := filepath.Join(sourceDir, name+".json")
	require.NoError(t, os.WriteFile(path, artifactBytes, 0644))
	return path
}

func deployable(object string) map[string]any {
	return map[string]any{
		"abi": []map[string]any{
			{"type": "function", "name": "transfer"},
		},
		"bytecode": map[string]any{
			"object": object,
		},
		"rawMetadata": `{"settings":{"compilationTarget":{"src/Token.sol":"Token"}}}`,
	}
}

func TestBuilder_Metadata(t *testing.T) {
	b := New()

	assert.Equal(t, "foundry", b.Name())
	assert.Equal(t, "Foundry", b.DisplayName())
	assert.Equal(t, "evm", b.Chain())
	assert.Equal(t, "foundry.toml", b.ConfigFile())
}

func TestBuilder_DetectProject(t *testing.T) {
	b := New()

	t.Run("with foundry.toml", func(t *testing.T) {
		dir := t.TempDir()
		err := os.WriteFile(filepath.Join(dir, "foundry.toml"), []byte("[profile.default]"), 0644)
		require.NoError(t, err)

		detected, err := b.DetectProject(dir)
		require.NoError(t, err)
		assert.True(t, detected)
	})

	t.Run("without foundry.toml", func(t *testing.T) {
		dir := t.TempDir()

		detected, err := b.DetectProject(dir)
		require.NoError(t, err)
		assert.False(t, detected)
	})
}

func TestBuilder_Detect(t *testing.T) {
	b := New()

	t.Run("foundry artifact", func(t *testing.T) {
		path := writeArtifact(t, t.TempDir(), "Token.sol", "Token", deployable("0x6080"))

		detected, err := b.Detect(path)
		require.NoError(t, err)
		assert.True(t, detected)
	})

	t.Run("flat metadata is not foundry", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "Metadata.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"abi":[],"bytecode":"0x6080"}`), 0644))

		detected, err := b.Detect(path)
		require.NoError(t, err)
		assert.False(t, detected)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := b.Detect(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})
}

func TestBuilder_Discover(t *testing.T) {
	b := New()

	t.Run("with artifacts", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifact(t, dir, "Token.sol", "Token", deployable("0x1234"))
		writeArtifact(t, dir, "Vault.sol", "Vault", deployable("0x5678"))

		paths, err := b.Discover(dir, chains.DiscoverOptions{})
		require.NoError(t, err)
		assert.Len(t, paths, 2)
	})

	t.Run("skips interfaces", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifact(t, dir, "IToken.sol", "IToken", deployable(""))

		paths, err := b.Discover(dir, chains.DiscoverOptions{})
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("skips build-info and stray json", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifact(t, dir, "build-info", "abc123", map[string]any{})
		writeArtifact(t, dir, "Token.sol", "Token", deployable("0x1234"))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "out", "stray.json"), []byte("{}"), 0644))

		paths, err := b.Discover(dir, chains.DiscoverOptions{})
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, "Token.json", filepath.Base(paths[0]))
	})

	t.Run("exclude patterns", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifact(t, dir, "Token.sol", "Token", deployable("0x1234"))
		writeArtifact(t, dir, "TokenTest.t.sol", "TokenTest", deployable("0x1234"))
		writeArtifact(t, dir, "MockToken.sol", "MockToken", deployable("0x1234"))

		paths, err := b.Discover(dir, chains.DiscoverOptions{Exclude: []string{"Test", "Mock"}})
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, "Token.json", filepath.Base(paths[0]))
	})

	t.Run("without out directory", func(t *testing.T) {
		_, err := b.Discover(t.TempDir(), chains.DiscoverOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "forge build")
	})
}

func TestBuilder_FindArtifact(t *testing.T) {
	b := New()
	dir := t.TempDir()
	want := writeArtifact(t, dir, "Token.sol", "Token", deployable("0x1234"))
	writeArtifact(t, dir, "Vault.sol", "Vault", deployable("0x5678"))

	t.Run("case insensitive match", func(t *testing.T) {
		got, err := b.FindArtifact(dir, "token")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("unknown contract", func(t *testing.T) {
		_, err := b.FindArtifact(dir, "Missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Missing")
	})
}

func TestBuilder_Parse(t *testing.T) {
	b := New()

	t.Run("valid artifact", func(t *testing.T) {
		dir := t.TempDir()

		artifact := map[string]any{
			"abi": []map[string]any{
				{"type": "function", "name": "transfer"},
			},
			"bytecode": map[string]any{
				"object": "0x608060405234801561001057600080fd5b50",
			},
			"deployedBytecode": map[string]any{
				"object": "0x608060405234801561001057600080fd5b50",
			},
			"rawMetadata": `{"compiler":{"version":"0.8.20"},"settings":{"compilationTarget":{"src/Token.sol":"Token"},"optimizer":{"enabled":true,"runs":200}},"sources":{"src/Token.sol":{"license":"MIT"}}}`,
		}
		artifactPath := writeArtifact(t, dir, "Token.sol", "Token", artifact)

		result, err := b.Parse(artifactPath)
		require.NoError(t, err)
		assert.Equal(t, "Token", result.Name)
		assert.Equal(t, "evm", result.Chain)
		assert.Equal(t, "foundry", result.Builder)
		require.NotNil(t, result.EVM)
		assert.Contains(t, result.EVM.Bytecode, "0x608060")
		assert.Equal(t, "src/Token.sol", result.EVM.SourcePath)
		assert.Equal(t, "MIT", result.EVM.License)
		assert.Equal(t, "0.8.20", result.EVM.Compiler.Version)
		assert.True(t, result.EVM.Compiler.Optimizer.Enabled)
		assert.Equal(t, 200, result.EVM.Compiler.Optimizer.Runs)
		assert.NoError(t, result.Validate())
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		artifactPath := filepath.Join(dir, "Invalid.json")
		require.NoError(t, os.WriteFile(artifactPath, []byte("not json"), 0644))

		_, err := b.Parse(artifactPath)
		require.Error(t, err)
	})

	t.Run("interface (no bytecode)", func(t *testing.T) {
		artifactPath := writeArtifact(t, t.TempDir(), "IToken.sol", "IToken", deployable(""))

		_, err := b.Parse(artifactPath)
		require.ErrorIs(t, err, chains.ErrEmptyBytecode)
	})

	t.Run("unlinked library", func(t *testing.T) {
		artifact := deployable("0x6080")
		artifact["bytecode"] = map[string]any{
			"object": "0x6080",
			"linkReferences": map[string]any{
				"src/Math.sol": map[string]any{
					"Math": []map[string]int{{"start": 10, "length": 20}},
				},
			},
		}
		artifactPath := writeArtifact(t, t.TempDir(), "Token.sol", "Token", artifact)

		_, err := b.Parse(artifactPath)
		require.ErrorIs(t, err, chains.ErrUnlinkedLibrary)
		assert.Contains(t, err.Error(), "src/Math.sol:Math")
	})
}
