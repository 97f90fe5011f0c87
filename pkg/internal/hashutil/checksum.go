// Package hashutil computes archive digests in the form stored on HUD
// descriptors.
package hashutil

import (
	"encoding/hex"
	"io"
	"os"

	"lukechampine.com/blake3"
)

// FileDigest returns the hex-encoded BLAKE3 digest of the file at path.
func FileDigest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := blake3.New(32, nil)
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
