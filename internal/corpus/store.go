package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BrowserOperator/web-agent/internal/gateway"
	"github.com/BrowserOperator/web-agent/internal/logging"
	"github.com/BrowserOperator/web-agent/internal/snapshot"
)

// ErrBaselineExists is returned when SaveBaseline is called on a corpus that
// already has a baseline. The baseline is write-once.
var ErrBaselineExists = errors.New("baseline already recorded")

// ErrNoBaseline is returned by operations that require a recorded baseline.
var ErrNoBaseline = errors.New("no baseline recorded")

const (
	indexFile    = "index.yaml"
	metadataFile = "metadata.yaml"
	changesFile  = "changes.yaml"
	baselineDir  = "baseline"
)

// index is the on-disk corpus manifest. Example order in the manifest is
// insertion order and drives regression order.
type index struct {
	Version  int      `yaml:"version"`
	Baseline bool     `yaml:"baseline"`
	Examples []string `yaml:"examples"`
}

// baselineMeta is the metadata record stored next to the baseline snapshot.
type baselineMeta struct {
	Tab            gateway.TabRef `yaml:"tab"`
	CapturedAt     time.Time      `yaml:"captured_at"`
	SnapshotFile   string         `yaml:"snapshot"`
	SnapshotFormat string         `yaml:"snapshot_format"`
}

// Store is the durable example corpus rooted at one directory. Every mutation
// is flushed before returning; a mutation that fails leaves the previous
// on-disk state intact.
type Store struct {
	mu       sync.RWMutex
	root     string
	idx      index
	baseline *snapshot.Snapshot
	baseTab  gateway.TabRef
	examples []*Example
	counts   map[ExampleType]int
}

// Open loads the corpus at root, creating the directory when absent. A
// manifest that references a missing example directory is an error rather
// than a silently smaller corpus.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus directory: %w", err)
	}

	s := &Store{
		root:   root,
		idx:    index{Version: 1},
		counts: make(map[ExampleType]int),
	}

	data, err := os.ReadFile(filepath.Join(root, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus index: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.idx); err != nil {
		return nil, fmt.Errorf("parse corpus index: %w", err)
	}

	if s.idx.Baseline {
		if err := s.loadBaseline(); err != nil {
			return nil, err
		}
	}
	for _, id := range s.idx.Examples {
		ex, err := s.loadExample(id)
		if err != nil {
			return nil, err
		}
		s.examples = append(s.examples, ex)
		s.counts[ex.Type]++
	}
	logging.Corpus("opened corpus at %s: baseline=%v examples=%d", root, s.idx.Baseline, len(s.examples))
	return s, nil
}

// Root returns the corpus directory.
func (s *Store) Root() string { return s.root }

// SaveBaseline records the pre-action snapshot and its tab. It fails with
// ErrBaselineExists if a baseline was already recorded.
func (s *Store) SaveBaseline(tab gateway.TabRef, snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx.Baseline {
		return ErrBaselineExists
	}
	if snap == nil {
		return fmt.Errorf("nil baseline snapshot")
	}

	dir := filepath.Join(s.root, baselineDir)
	snapFile := snapshotFileName(snap.Format)
	meta := baselineMeta{
		Tab:            tab,
		CapturedAt:     snap.CapturedAt,
		SnapshotFile:   snapFile,
		SnapshotFormat: snap.Format,
	}
	metaData, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode baseline metadata: %w", err)
	}
	if err := writeDirAtomic(dir, map[string][]byte{
		snapFile:     snap.Data,
		metadataFile: metaData,
	}); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}

	prev := s.idx
	s.idx.Baseline = true
	if err := s.writeIndex(); err != nil {
		s.idx = prev
		_ = os.RemoveAll(dir)
		return fmt.Errorf("write corpus index: %w", err)
	}

	s.baseline = snap
	s.baseTab = tab
	logging.Corpus("recorded baseline (%s, %d bytes)", snap.Format, len(snap.Data))
	return nil
}

// BaselineSnapshot returns the recorded baseline snapshot and its tab.
func (s *Store) BaselineSnapshot() (gateway.TabRef, *snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.idx.Baseline {
		return gateway.TabRef{}, nil, ErrNoBaseline
	}
	return s.baseTab, s.baseline, nil
}

// HasBaseline reports whether a baseline is recorded.
func (s *Store) HasBaseline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx.Baseline
}

// AddExample appends a labeled example. The id is assigned sequentially per
// type and the expected verdict is derived from the type. The example payload
// is written before the manifest; a manifest failure rolls the payload back.
func (s *Store) AddExample(typ ExampleType, tab gateway.TabRef, snap *snapshot.Snapshot, changes []snapshot.Change) (*Example, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !typ.Valid() {
		return nil, fmt.Errorf("invalid example type %q", typ)
	}
	if snap == nil {
		return nil, fmt.Errorf("nil example snapshot")
	}

	id := exampleID(typ, s.counts[typ]+1)
	ex := &Example{
		ID:             id,
		Type:           typ,
		ExpectedResult: typ.ExpectedResult(),
		Tab:            tab,
		CreatedAt:      time.Now().UTC(),
		SnapshotFile:   snapshotFileName(snap.Format),
		SnapshotFormat: snap.Format,
		ChangesFile:    changesFile,
		Snapshot:       snap,
		Changes:        changes,
	}

	metaData, err := yaml.Marshal(ex)
	if err != nil {
		return nil, fmt.Errorf("encode example metadata: %w", err)
	}
	changeData, err := yaml.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("encode example changes: %w", err)
	}

	dir := filepath.Join(s.root, id)
	if err := writeDirAtomic(dir, map[string][]byte{
		ex.SnapshotFile: snap.Data,
		changesFile:     changeData,
		metadataFile:    metaData,
	}); err != nil {
		return nil, fmt.Errorf("write example %s: %w", id, err)
	}

	prev := s.idx.Examples
	s.idx.Examples = append(append([]string{}, prev...), id)
	if err := s.writeIndex(); err != nil {
		s.idx.Examples = prev
		_ = os.RemoveAll(dir)
		logging.CorpusError("rolled back example %s after index failure: %v", id, err)
		return nil, fmt.Errorf("write corpus index: %w", err)
	}

	s.examples = append(s.examples, ex)
	s.counts[typ]++
	logging.Corpus("added example %s (tab %s, %d changes)", id, tab, len(changes))
	return ex, nil
}

// Examples returns all examples in insertion order. The returned slice is a
// copy; the examples themselves are shared and must not be mutated.
func (s *Store) Examples() []*Example {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Example, len(s.examples))
	copy(out, s.examples)
	return out
}

// Len returns the number of stored examples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.examples)
}

// Count returns the number of stored examples of one type.
func (s *Store) Count(typ ExampleType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[typ]
}

func (s *Store) writeIndex() error {
	data, err := yaml.Marshal(s.idx)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.root, indexFile), data)
}

func (s *Store) loadBaseline() error {
	dir := filepath.Join(s.root, baselineDir)
	metaData, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return fmt.Errorf("read baseline metadata: %w", err)
	}
	var meta baselineMeta
	if err := yaml.Unmarshal(metaData, &meta); err != nil {
		return fmt.Errorf("parse baseline metadata: %w", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, meta.SnapshotFile))
	if err != nil {
		return fmt.Errorf("read baseline snapshot: %w", err)
	}
	s.baseTab = meta.Tab
	s.baseline = &snapshot.Snapshot{
		SessionRef: meta.Tab.SessionRef,
		TabRef:     meta.Tab.TabID,
		CapturedAt: meta.CapturedAt,
		Format:     meta.SnapshotFormat,
		Data:       data,
	}
	return nil
}

func (s *Store) loadExample(id string) (*Example, error) {
	dir := filepath.Join(s.root, id)
	metaData, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, fmt.Errorf("read example %s: %w", id, err)
	}
	var ex Example
	if err := yaml.Unmarshal(metaData, &ex); err != nil {
		return nil, fmt.Errorf("parse example %s metadata: %w", id, err)
	}
	if ex.ExpectedResult != ex.Type.ExpectedResult() {
		return nil, fmt.Errorf("example %s: expected_result contradicts type %q", id, ex.Type)
	}

	snapData, err := os.ReadFile(filepath.Join(dir, ex.SnapshotFile))
	if err != nil {
		return nil, fmt.Errorf("read example %s snapshot: %w", id, err)
	}
	ex.Snapshot = &snapshot.Snapshot{
		SessionRef: ex.Tab.SessionRef,
		TabRef:     ex.Tab.TabID,
		CapturedAt: ex.CreatedAt,
		Format:     ex.SnapshotFormat,
		Data:       snapData,
	}

	changeData, err := os.ReadFile(filepath.Join(dir, ex.ChangesFile))
	if err != nil {
		return nil, fmt.Errorf("read example %s changes: %w", id, err)
	}
	if err := yaml.Unmarshal(changeData, &ex.Changes); err != nil {
		return nil, fmt.Errorf("parse example %s changes: %w", id, err)
	}
	return &ex, nil
}

// snapshotFileName picks the payload file name by format so audits of the
// corpus directory read naturally.
func snapshotFileName(format string) string {
	if format == "html" {
		return "snapshot.html"
	}
	return "snapshot.json"
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// writeDirAtomic materializes a directory of files in a temp location and
// renames it to dir, so a crash can never leave a half-written entry behind.
func writeDirAtomic(dir string, files map[string][]byte) error {
	parent := filepath.Dir(dir)
	tmp, err := os.MkdirTemp(parent, ".tmp-entry-*")
	if err != nil {
		return err
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(tmp, name), data, 0o644); err != nil {
			os.RemoveAll(tmp)
			return err
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		os.RemoveAll(tmp)
		return err
	}
	return nil
}
