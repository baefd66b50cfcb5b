package validation

import (
	"strings"
	"testing"
)

func TestValidateNetworkName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "Sonic", false},
		{"with digits", "sepolia2", false},
		{"with separators", "base-sepolia_v2", false},
		{"empty", "", true},
		{"starts with digit", "1network", true},
		{"contains space", "my network", true},
		{"contains dot", "my.network", true},
		{"too long", "a" + strings.Repeat("b", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNetworkName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNetworkName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid lowercase", "0x1234567890abcdef1234567890abcdef12345678", false},
		{"valid uppercase", "0x1234567890ABCDEF1234567890ABCDEF12345678", false},
		{"valid mixed case", "0x1234567890AbCdEf1234567890aBcDeF12345678", false},
		{"too short", "0x1234", true},
		{"too long", "0x1234567890abcdef1234567890abcdef123456789", true},
		{"no prefix", "1234567890abcdef1234567890abcdef1234567890", true},
		{"invalid chars", "0x1234567890ghijkl1234567890abcdef12345678", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateChainID(t *testing.T) {
	tests := []struct {
		name    string
		input   int64
		wantErr bool
	}{
		{"sonic", 14601, false},
		{"mainnet", 1, false},
		{"zero", 0, true},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChainID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChainID(%d) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRPCURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"http", "http://localhost:9999", false},
		{"https", "https://rpc.testnet.soniclabs.com", false},
		{"websocket", "wss://rpc.example.com/ws", false},
		{"ipc path", "/tmp/geth.ipc", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"missing host", "http://", true},
		{"unsupported scheme", "ftp://example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRPCURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRPCURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePrivateKey(t *testing.T) {
	const key = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"bare hex", key, false},
		{"0x prefix", "0x" + key, false},
		{"surrounding whitespace", " " + key + "\n", false},
		{"empty", "", true},
		{"prefix only", "0x", true},
		{"short", key[:62], true},
		{"non-hex", "zz" + key[2:], true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePrivateKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePrivateKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateBytecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"with prefix", "0x6080604052", false},
		{"without prefix", "6080604052", false},
		{"empty", "", true},
		{"prefix only", "0x", true},
		{"odd length", "0x608", true},
		{"non-hex", "0x60zz", true},
		{"unlinked library", "0x6080__$0123456789abcdef0123456789abcdef01$__6080", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBytecode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBytecode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
