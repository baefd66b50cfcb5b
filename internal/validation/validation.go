// Package validation provides input validation for the deployer.
package validation

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Network names become keys in the generated config, so keep them identifier-like
var networkNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// Library placeholder pattern: __$<34 hex chars>$__
var libraryPlaceholder = regexp.MustCompile(`__\$[a-fA-F0-9]{34}\$__`)

// ValidateNetworkName validates a network name used as a config key
func ValidateNetworkName(name string) error {
	if name == "" {
		return errors.New("network name cannot be empty")
	}
	if !networkNameRegex.MatchString(name) {
		return errors.New("invalid network name: must start with a letter and contain only letters, digits, '-' or '_' (max 64 chars)")
	}
	return nil
}

// ValidateAddress validates an Ethereum address
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	if !isHex(addr[2:]) {
		return errors.New("invalid address: contains non-hex characters")
	}
	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID int64) error {
	if chainID <= 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}

// ValidateRPCURL checks that an endpoint URL is present and uses a scheme the
// go-ethereum rpc client can dial. Reachability is not checked here.
func ValidateRPCURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("RPC URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid RPC URL: " + err.Error())
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
		if u.Host == "" {
			return errors.New("invalid RPC URL: missing host")
		}
		return nil
	case "":
		// IPC endpoints are plain filesystem paths
		return nil
	default:
		return errors.New("invalid RPC URL: unsupported scheme " + u.Scheme)
	}
}

// ValidatePrivateKey validates a hex encoded secp256k1 private key, with or
// without a 0x prefix.
func ValidatePrivateKey(key string) error {
	key = strings.TrimPrefix(strings.TrimSpace(key), "0x")
	if key == "" {
		return errors.New("private key cannot be empty")
	}
	if len(key) != 64 {
		return errors.New("invalid private key length: must be 64 hex characters")
	}
	if !isHex(key) {
		return errors.New("invalid private key: contains non-hex characters")
	}
	return nil
}

// ValidateBytecode validates creation bytecode as hex with optional 0x prefix
func ValidateBytecode(code string) error {
	trimmed := strings.TrimPrefix(strings.TrimSpace(code), "0x")
	if trimmed == "" {
		return errors.New("bytecode cannot be empty")
	}
	if HasLibraryPlaceholders(trimmed) {
		return errors.New("bytecode contains unlinked library placeholders")
	}
	if len(trimmed)%2 != 0 {
		return errors.New("invalid bytecode: odd number of hex characters")
	}
	if !isHex(trimmed) {
		return errors.New("invalid bytecode: contains non-hex characters")
	}
	return nil
}

// HasLibraryPlaceholders checks if bytecode contains library placeholders
func HasLibraryPlaceholders(bytecode string) bool {
	return libraryPlaceholder.MatchString(bytecode)
}

func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}
