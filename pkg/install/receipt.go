// pkg/install/receipt.go
package install

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/arc-language/bundlekit/pkg/env"
)

// ReceiptComponent records one installed component
type ReceiptComponent struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

// Receipt is written once an install reached Done. Its presence marks the
// prefix as installed.
type Receipt struct {
	Name       string             `json:"name"`
	Host       string             `json:"host"`
	Components []ReceiptComponent `json:"components"`
	Launcher   string             `json:"launcher,omitempty"`
	Env        []env.Var          `json:"env"`
	CreatedAt  string             `json:"created_at"`
}

// ReceiptPath returns where the receipt of prefix lives
func ReceiptPath(prefix string) string {
	return filepath.Join(prefix, ".bundlekit", "receipt.json")
}

// LoadReceipt reads the receipt of prefix. It returns fs.ErrNotExist when
// nothing was installed there.
func LoadReceipt(prefix string) (*Receipt, error) {
	data, err := os.ReadFile(ReceiptPath(prefix))
	if err != nil {
		return nil, err
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing receipt: %w", err)
	}
	return &r, nil
}

func hasReceipt(prefix string) (bool, error) {
	_, err := os.Stat(ReceiptPath(prefix))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func saveReceipt(prefix string, r *Receipt) error {
	r.CreatedAt = time.Now().Format(time.RFC3339)

	path := ReceiptPath(prefix)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating receipt directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
