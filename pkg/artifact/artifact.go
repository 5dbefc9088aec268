package artifact

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// Artifact is an immutable record of one model-generated answer.
// The prompt itself is never stored; only its hash is kept so an answer
// can be tied back to a request without retaining user content.
type Artifact struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Adapter    string            `json:"adapter"`
	Model      string            `json:"model"`
	PromptHash string            `json:"prompt_hash"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Hash       string            `json:"hash"`
}

// New creates an Artifact with computed content and prompt hashes.
func New(content, adapter, model, prompt string) *Artifact {
	a := &Artifact{
		ID:         generateID(),
		Content:    content,
		Adapter:    adapter,
		Model:      model,
		PromptHash: hashString(prompt),
		Metadata:   make(map[string]string),
		CreatedAt:  time.Now().UTC(),
	}
	a.Hash = a.computeHash()
	return a
}

// WithContent returns a copy of the artifact carrying transformed content,
// preserving provenance fields. Used after redaction so the delivered text
// and the generating adapter stay linked.
func (a *Artifact) WithContent(content string) *Artifact {
	b := &Artifact{
		ID:         a.ID,
		Content:    content,
		Adapter:    a.Adapter,
		Model:      a.Model,
		PromptHash: a.PromptHash,
		Metadata:   copyMetadata(a.Metadata),
		CreatedAt:  a.CreatedAt,
	}
	b.Hash = b.computeHash()
	return b
}

// WithMetadata returns a copy of the artifact with one metadata entry added.
func (a *Artifact) WithMetadata(key, value string) *Artifact {
	b := &Artifact{
		ID:         a.ID,
		Content:    a.Content,
		Adapter:    a.Adapter,
		Model:      a.Model,
		PromptHash: a.PromptHash,
		Metadata:   copyMetadata(a.Metadata),
		CreatedAt:  a.CreatedAt,
		Hash:       a.Hash,
	}
	b.Metadata[key] = value
	return b
}

func (a *Artifact) computeHash() string {
	h := sha256.New()
	h.Write([]byte(a.Content))
	h.Write([]byte(a.Adapter))
	h.Write([]byte(a.Model))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

func generateID() string {
	h := sha256.New()
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(time.Now().UnixNano()))
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))[:12]
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
