// Package netconfig reads and writes the network configuration file that
// records where contracts were deployed.
package netconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/pendergraft/deployer/internal/validation"
)

// Format is an on-disk encoding of the network configuration
type Format string

// Supported formats
const (
	FormatJSON       Format = "json"
	FormatYAML       Format = "yaml"
	FormatTOML       Format = "toml"
	FormatTypeScript Format = "ts"
)

// Mode controls how an existing file is treated on write
type Mode string

const (
	// ModeMerge keeps other networks already in the file
	ModeMerge Mode = "merge"
	// ModeReplace writes a file holding only the new network
	ModeReplace Mode = "replace"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrMalformed         = errors.New("malformed network configuration")
)

// Network is one deployed network entry
type Network struct {
	URL     string `json:"url" yaml:"url" toml:"url"`
	ChainID uint64 `json:"chainId" yaml:"chainId" toml:"chainId"`
	Address string `json:"address" yaml:"address" toml:"address"`
}

// File is the whole network configuration document
type File struct {
	Networks map[string]Network `json:"networks" yaml:"networks" toml:"networks"`
}

// FormatFor picks the format from the file extension. Paths without an
// extension are written as JSON.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", "":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".ts":
		return FormatTypeScript, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Encode renders f in the given format
func Encode(f *File, format Format) ([]byte, error) {
	if f.Networks == nil {
		f = &File{Networks: map[string]Network{}}
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(f); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatTypeScript:
		return encodeTypeScript(f), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Decode parses data in the given format. TypeScript output is generated
// source and cannot be read back.
func Decode(data []byte, format Format) (*File, error) {
	f := &File{}
	var err error

	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, f)
	case FormatYAML:
		err = yaml.Unmarshal(data, f)
	case FormatTOML:
		_, err = toml.Decode(string(data), f)
	default:
		return nil, fmt.Errorf("%w: cannot read %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if f.Networks == nil {
		f.Networks = map[string]Network{}
	}
	return f, nil
}

// Read loads the network configuration at path
func Read(path string) (*File, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &File{Networks: map[string]Network{}}, nil
	}

	return Decode(data, format)
}

// Write records network under name in the file at path. In merge mode other
// networks already in the file are kept; a missing file starts empty and a
// malformed one is left untouched and reported. TypeScript output is always
// replaced. The file is swapped in with a rename so readers never observe a
// partial write.
func Write(path, name string, network Network, mode Mode) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	if err := validation.ValidateNetworkName(name); err != nil {
		return err
	}
	if err := validation.ValidateAddress(network.Address); err != nil {
		return err
	}

	f := &File{Networks: map[string]Network{}}
	if mode != ModeReplace && format != FormatTypeScript {
		existing, err := Read(path)
		switch {
		case err == nil:
			f = existing
		case errors.Is(err, os.ErrNotExist):
		default:
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}
	f.Networks[name] = network

	data, err := Encode(f, format)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	return writeAtomic(path, data)
}

// writeAtomic writes data to a temp file next to path and renames it over path
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting permissions on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	return nil
}

// encodeTypeScript renders the legacy config module:
//
//	const Network = { networks: { Name: { url, chainId, address } } };
//	export default Network;
func encodeTypeScript(f *File) []byte {
	names := make([]string, 0, len(f.Networks))
	for name := range f.Networks {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("const Network = {\n")
	b.WriteString("    networks: {\n")
	for _, name := range names {
		n := f.Networks[name]
		fmt.Fprintf(&b, "        %s: {\n", tsKey(name))
		fmt.Fprintf(&b, "            url: %s,\n", strconv.Quote(n.URL))
		fmt.Fprintf(&b, "            chainId: %d,\n", n.ChainID)
		fmt.Fprintf(&b, "            address: %s\n", strconv.Quote(n.Address))
		b.WriteString("        },\n")
	}
	b.WriteString("    },\n")
	b.WriteString("};\n\n")
	b.WriteString("export default Network;\n")

	return []byte(b.String())
}

// tsKey quotes object keys that are not valid identifiers
func tsKey(name string) string {
	for i, r := range name {
		ok := r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9')
		if !ok {
			return strconv.Quote(name)
		}
	}
	if name == "" {
		return `""`
	}
	return name
}
