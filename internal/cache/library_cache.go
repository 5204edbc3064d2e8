package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Nomadcxx/strmsync/internal/scanner"
)

// LoadLibraryKeys reads the library key cache, a JSON array of keys. A missing
// file is an empty set.
func LoadLibraryKeys(path string) (scanner.KeySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(scanner.KeySet), nil
		}
		return nil, fmt.Errorf("read library cache: %w", err)
	}
	if len(data) == 0 {
		return make(scanner.KeySet), nil
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("parse library cache %s: %w", path, err)
	}

	return scanner.NewKeySet(keys...), nil
}

// SaveLibraryKeys writes keys sorted, atomically
func SaveLibraryKeys(path string, keys scanner.KeySet) error {
	data, err := json.MarshalIndent(keys.Sorted(), "", "    ")
	if err != nil {
		return fmt.Errorf("marshal library cache: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("persist library cache: %w", err)
	}
	return nil
}
