package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store keeps released artifacts on disk, sharded by content hash. Only
// answers that passed validation and redaction are ever written; the store
// never sees raw model output.
type Store struct {
	BasePath string
}

// NewStore creates an artifact store rooted at basePath, defaulting to
// ~/.chatgate/artifacts.
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		basePath = filepath.Join(home, ".chatgate", "artifacts")
	}
	if err := os.MkdirAll(filepath.Join(basePath, "objects"), 0755); err != nil {
		return nil, err
	}
	return &Store{BasePath: basePath}, nil
}

// Save writes the artifact under its content hash and returns the hash.
// Saving the same artifact twice overwrites the identical object.
func (s *Store) Save(a *Artifact) (string, error) {
	if a == nil || a.Hash == "" {
		return "", fmt.Errorf("artifact has no content hash")
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", err
	}

	shard := a.Hash[:2]
	dir := filepath.Join(s.BasePath, "objects", shard)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, a.Hash+".json"), data, 0644); err != nil {
		return "", err
	}
	return a.Hash, nil
}

// Load reads an artifact back by its content hash.
func (s *Store) Load(hash string) (*Artifact, error) {
	if len(hash) < 2 {
		return nil, fmt.Errorf("invalid artifact hash %q", hash)
	}
	path := filepath.Join(s.BasePath, "objects", hash[:2], hash+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("corrupt artifact %s: %w", hash, err)
	}
	return &a, nil
}
