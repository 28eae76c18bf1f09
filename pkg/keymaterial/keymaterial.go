// Package keymaterial generates the shared key file used for inter-node
// authentication in replica sets and sharded clusters.
package keymaterial

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

// keyBytes chooses a raw byte length whose base64 encoding comfortably
// satisfies MongoDB's 6-to-1024-character key file constraint.
const keyBytes = 128

// CreateKey writes a random base64-encoded key to path with permissions
// restricted to the owner (0600). The same file is referenced by every
// node in the deployment via --keyFile.
func CreateKey(path string) error {
	raw := make([]byte, keyBytes)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate key material: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(raw)

	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write key file %s: %w", path, err)
	}

	// os.WriteFile respects umask; enforce 0600 explicitly since MongoDB
	// refuses to start with a group- or world-readable key file.
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set key file permissions on %s: %w", path, err)
	}

	return nil
}
