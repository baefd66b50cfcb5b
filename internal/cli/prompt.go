package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/pendergraft/deployer/internal/validation"
)

// promptPrivateKey asks for the signing key. On a terminal the key is read
// without echo; otherwise one line is read from in.
func promptPrivateKey(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter private key: ")

	var key string
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		byteKey, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out) // New line after password input
		if err != nil {
			return "", fmt.Errorf("failed to read private key: %w", err)
		}
		key = string(byteKey)
	} else {
		reader := bufio.NewReader(in)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read private key: %w", err)
		}
		key = line
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("private key cannot be empty")
	}
	if err := validation.ValidatePrivateKey(key); err != nil {
		return "", err
	}
	return key, nil
}
