package duckdb

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// download copies reader into a new file at path, fsyncs it before DuckDB
// opens it, and checks the body against wantSHA256 when the manifest has one.
// A mismatching file is removed.
func download(path string, reader io.Reader, wantSHA256 string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	hash := sha256.New()
	_, err = io.Copy(io.MultiWriter(file, hash), reader)
	if err == nil {
		err = file.Sync()
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err == nil && wantSHA256 != "" {
		if got := hex.EncodeToString(hash.Sum(nil)); got != wantSHA256 {
			err = fmt.Errorf("checksum mismatch: got %s, manifest has %s", got, wantSHA256)
		}
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
