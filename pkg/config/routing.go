package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Meta-task keys. The set is fixed; unknown keys in the persisted file are
// ignored on load rather than treated as errors.
const (
	TaskIntentClassification = "intent_classification"
	TaskSecurityJudge        = "security_judge"
	TaskPIIRedactor          = "pii_redactor"
)

// MetaTasks lists every routable meta-task in stable order.
var MetaTasks = []string{
	TaskIntentClassification,
	TaskSecurityJudge,
	TaskPIIRedactor,
}

// autoSentinel is the operator-facing value meaning "no override".
const autoSentinel = "auto"

// Choice is the resolved form of one routing override: either a concrete
// model identifier or "use the system default". The sentinel string is
// resolved here, before any adapter lookup, so "auto" can never leak into
// model resolution as a literal identifier.
type Choice struct {
	model string
}

// Auto returns the use-default choice.
func Auto() Choice {
	return Choice{}
}

// Override returns a choice pinning a concrete model identifier.
func Override(model string) Choice {
	return Choice{model: model}
}

// ChoiceFrom parses an operator-supplied value. Empty and "auto" both mean
// use-default.
func ChoiceFrom(value string) Choice {
	if value == "" || value == autoSentinel {
		return Auto()
	}
	return Override(value)
}

// IsAuto reports whether the choice defers to the system default.
func (c Choice) IsAuto() bool {
	return c.model == ""
}

// Model returns the pinned model identifier, or "" for the auto choice.
func (c Choice) Model() string {
	return c.model
}

// String renders the choice in its operator-facing form.
func (c Choice) String() string {
	if c.IsAuto() {
		return autoSentinel
	}
	return c.model
}

// RoutingSnapshot is an immutable view of the routing overrides. Requests
// take one snapshot at start and use it throughout, so a concurrent update
// never changes routing mid-request.
type RoutingSnapshot struct {
	version uint64
	choices map[string]Choice
}

// Choice returns the override for a meta-task. Tasks outside the fixed set
// resolve to Auto.
func (s *RoutingSnapshot) Choice(task string) Choice {
	if s == nil {
		return Auto()
	}
	return s.choices[task]
}

// Version returns the snapshot's monotonic version, starting at 1 for the
// loaded state.
func (s *RoutingSnapshot) Version() uint64 {
	return s.version
}

// Values returns the operator-facing view: every meta-task key mapped to
// "auto" or its pinned model.
func (s *RoutingSnapshot) Values() map[string]string {
	out := make(map[string]string, len(MetaTasks))
	for _, task := range MetaTasks {
		out[task] = s.Choice(task).String()
	}
	return out
}

// RoutingStore persists meta-task routing overrides as a flat JSON object
// and serves immutable snapshots to request handlers. Updates build a new
// snapshot and swap a single pointer; in-flight requests keep the snapshot
// they started with.
type RoutingStore struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex // serializes Update persist+swap
	snap atomic.Pointer[RoutingSnapshot]
}

// OpenRoutingStore loads the persisted overrides from path, creating an
// empty file on first startup. A corrupt file falls back to an empty config
// with a warning; startup never fails on routing state.
func OpenRoutingStore(path string, logger *slog.Logger) *RoutingStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RoutingStore{path: path, logger: logger}

	choices := make(map[string]Choice)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if werr := s.persist(map[string]Choice{}); werr != nil {
			logger.Warn("could not create routing file", "path", path, "error", werr)
		}
	case err != nil:
		logger.Warn("could not read routing file, using empty config", "path", path, "error", err)
	default:
		var raw map[string]string
		if jerr := json.Unmarshal(data, &raw); jerr != nil {
			logger.Warn("routing file is corrupt, using empty config", "path", path, "error", jerr)
		} else {
			for _, task := range MetaTasks {
				if v, ok := raw[task]; ok {
					choices[task] = ChoiceFrom(v)
				}
			}
		}
	}

	s.snap.Store(&RoutingSnapshot{version: 1, choices: choices})
	return s
}

// Snapshot returns the current immutable routing view.
func (s *RoutingStore) Snapshot() *RoutingSnapshot {
	return s.snap.Load()
}

// Update merges partial overrides into the current state, persists the full
// merged map atomically, and installs the result as the new snapshot.
// Unknown keys are ignored. The returned snapshot is what subsequent
// requests will see; requests already in flight are unaffected.
func (s *RoutingStore) Update(partial map[string]string) (*RoutingSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.snap.Load()
	merged := make(map[string]Choice, len(MetaTasks))
	for task, choice := range current.choices {
		merged[task] = choice
	}
	for _, task := range MetaTasks {
		if v, ok := partial[task]; ok {
			merged[task] = ChoiceFrom(v)
		}
	}

	if err := s.persist(merged); err != nil {
		return nil, fmt.Errorf("failed to persist routing config: %w", err)
	}

	next := &RoutingSnapshot{version: current.version + 1, choices: merged}
	s.snap.Store(next)
	s.logger.Info("routing config updated", "version", next.version)
	return next, nil
}

// persist writes the full map as flat JSON via temp file + rename.
func (s *RoutingStore) persist(choices map[string]Choice) error {
	flat := make(map[string]string, len(choices))
	for task, choice := range choices {
		if !choice.IsAuto() {
			flat[task] = choice.Model()
		}
	}

	data, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".routing-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}
