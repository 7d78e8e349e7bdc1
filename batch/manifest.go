package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go-infill/infill"
)

const (
	manifestPrefix = "manifest_"
	timestampFmt   = "2006-01-02_15-04-05"
)

// PairEntry records one generated gap
type PairEntry struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	FromKey   string    `json:"fromKey,omitempty"`
	ToKey     string    `json:"toKey,omitempty"`
	GapStart  float64   `json:"gapStart"`
	Generated int       `json:"generated"`
	Tempos    []float64 `json:"tempos,omitempty"`
}

// Entry records one job of a run
type Entry struct {
	Inputs  []string    `json:"inputs"`
	Output  string      `json:"output"`
	Bytes   int64       `json:"bytes,omitempty"`
	Error   string      `json:"error,omitempty"`
	Elapsed string      `json:"elapsed"`
	Pairs   []PairEntry `json:"pairs,omitempty"`
}

// Manifest describes a batch run so a dataset can be traced back to its
// inputs and settings
type Manifest struct {
	Created time.Time      `json:"created"`
	Options infill.Options `json:"options"`
	Entries []Entry        `json:"entries"`

	mu sync.Mutex
}

// ManifestInfo is a saved manifest found in an output folder
type ManifestInfo struct {
	Filename  string
	Timestamp time.Time
}

func NewManifest(opts infill.Options) *Manifest {
	return &Manifest{Created: time.Now(), Options: opts}
}

// Add records an outcome. Safe for concurrent use.
func (m *Manifest) Add(out Outcome) {
	e := Entry{
		Inputs:  out.Job.Inputs,
		Output:  filepath.Base(out.Job.Output),
		Bytes:   out.Bytes,
		Elapsed: out.Elapsed.String(),
	}
	if out.Err != nil {
		e.Error = out.Err.Error()
	}
	if out.Result != nil {
		for _, p := range out.Result.Pairs {
			pe := PairEntry{
				From:      p.From,
				To:        p.To,
				GapStart:  p.GapStart,
				Generated: p.Generated,
				Tempos:    p.BlendTempos,
			}
			if m.Options.Transpose {
				pe.FromKey, pe.ToKey = p.FromKey.String(), p.ToKey.String()
			}
			e.Pairs = append(e.Pairs, pe)
		}
	}

	m.mu.Lock()
	m.Entries = append(m.Entries, e)
	m.mu.Unlock()
}

// Save writes the manifest into dir as manifest_<timestamp>.json, entries
// ordered by output name. Returns the file path.
func (m *Manifest) Save(dir string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.SliceStable(m.Entries, func(i, j int) bool { return m.Entries[i].Output < m.Entries[j].Output })

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, manifestPrefix+m.Created.Format(timestampFmt)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// LoadManifest reads a saved manifest
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListManifests returns the manifests saved in dir, newest first
func ListManifests(dir string) ([]ManifestInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ManifestInfo{}, nil
		}
		return nil, err
	}

	var infos []ManifestInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, manifestPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		ts, err := time.Parse(timestampFmt, strings.TrimSuffix(strings.TrimPrefix(name, manifestPrefix), ".json"))
		if err != nil {
			continue
		}
		infos = append(infos, ManifestInfo{Filename: name, Timestamp: ts})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})
	return infos, nil
}
