package evm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ParseABI decodes a JSON interface descriptor
func ParseABI(raw json.RawMessage) (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("%w: %v", ErrInvalidABI, err)
	}
	return parsed, nil
}

// Interface summarizes a contract ABI for display
type Interface struct {
	Constructor []string `json:"constructor"`
	Functions   []string `json:"functions"`
	Events      []string `json:"events"`
	Errors      []string `json:"errors"`
	Payable     bool     `json:"payable"`
}

// Describe lists the signatures declared by an ABI, sorted
func Describe(raw json.RawMessage) (*Interface, error) {
	parsed, err := ParseABI(raw)
	if err != nil {
		return nil, err
	}

	info := &Interface{
		Constructor: []string{},
		Functions:   []string{},
		Events:      []string{},
		Errors:      []string{},
		Payable:     parsed.Constructor.Payable,
	}
	for _, in := range parsed.Constructor.Inputs {
		info.Constructor = append(info.Constructor, in.Type.String()+" "+in.Name)
	}
	for _, m := range parsed.Methods {
		info.Functions = append(info.Functions, m.Sig)
	}
	for _, e := range parsed.Events {
		info.Events = append(info.Events, e.Sig)
	}
	for _, e := range parsed.Errors {
		info.Errors = append(info.Errors, e.Sig)
	}
	sort.Strings(info.Functions)
	sort.Strings(info.Events)
	sort.Strings(info.Errors)

	return info, nil
}
