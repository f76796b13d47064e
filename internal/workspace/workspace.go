// Package workspace holds the working set an editor session operates on: an
// ordered list of datasets plus one system instruction and one tool list
// shared by all of them.
//
// Every dataset handed in or out is deep-cloned, so callers never hold a
// reference into the stored contents.
package workspace

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/caiatech/tunelab/internal/models"
)

// Option configures a Workspace.
type Option func(*Workspace)

// WithIDFunc overrides the generator used for new dataset ids.
func WithIDFunc(fn func() string) Option {
	return func(w *Workspace) { w.newID = fn }
}

type Workspace struct {
	mu                sync.Mutex
	datasets          []models.Dataset
	systemInstruction string
	tools             []models.Tool
	newID             func() string
}

func New(opts ...Option) *Workspace {
	w := &Workspace{newID: uuid.NewString}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Load replaces the working set with imported records. Datasets get
// positional ids; the system instruction and tools are taken from the first
// record that carries them.
func (w *Workspace) Load(exports []models.DatasetExport) {
	datasets := models.CloneDatasets(models.ConvertRawDatasets(exports))
	si, tools := SharedSettings(exports)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.datasets = datasets
	w.systemInstruction = si
	w.tools = models.CloneTools(tools)
}

// SharedSettings picks the system instruction text and tool list that a batch
// of imported records should share.
func SharedSettings(exports []models.DatasetExport) (string, []models.Tool) {
	var si string
	var tools []models.Tool
	for _, e := range exports {
		if si == "" && e.SystemInstruction != nil {
			si = instructionText(*e.SystemInstruction)
		}
		if tools == nil && len(e.Tools) > 0 {
			tools = e.Tools
		}
	}
	return si, tools
}

func instructionText(c models.Content) string {
	for _, p := range c.Parts {
		if text, ok := p.TextValue(); ok {
			return text
		}
	}
	return ""
}

// Add appends a new empty dataset and returns it.
func (w *Workspace) Add() models.Dataset {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := models.Dataset{ID: w.uniqueIDLocked(), Contents: []models.Content{}}
	w.datasets = append(w.datasets, d)
	return models.CloneDataset(d)
}

// Duplicate inserts a deep copy of the dataset id right after it.
func (w *Workspace) Duplicate(id string) (models.Dataset, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexLocked(id)
	if i < 0 {
		return models.Dataset{}, models.ErrNotFound
	}
	dup := models.CloneDataset(w.datasets[i])
	dup.ID = w.uniqueIDLocked()

	w.datasets = append(w.datasets, models.Dataset{})
	copy(w.datasets[i+2:], w.datasets[i+1:])
	w.datasets[i+1] = dup
	return models.CloneDataset(dup), nil
}

func (w *Workspace) Delete(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexLocked(id)
	if i < 0 {
		return models.ErrNotFound
	}
	w.datasets = append(w.datasets[:i], w.datasets[i+1:]...)
	return nil
}

// Replace stores a copy of d over the dataset with the same id.
func (w *Workspace) Replace(d models.Dataset) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexLocked(d.ID)
	if i < 0 {
		return models.ErrNotFound
	}
	w.datasets[i] = models.CloneDataset(d)
	return nil
}

func (w *Workspace) Get(id string) (models.Dataset, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexLocked(id)
	if i < 0 {
		return models.Dataset{}, models.ErrNotFound
	}
	return models.CloneDataset(w.datasets[i]), nil
}

func (w *Workspace) List() []models.Dataset {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := models.CloneDatasets(w.datasets)
	if out == nil {
		out = []models.Dataset{}
	}
	return out
}

func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.datasets)
}

func (w *Workspace) SystemInstruction() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.systemInstruction
}

func (w *Workspace) SetSystemInstruction(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.systemInstruction = s
}

func (w *Workspace) Tools() []models.Tool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return models.CloneTools(w.tools)
}

func (w *Workspace) SetTools(tools []models.Tool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tools = models.CloneTools(tools)
}

// Export renders the whole working set as line-delimited JSON.
func (w *Workspace) Export() (string, error) {
	datasets, si, tools := w.snapshot()
	return models.ExportToJSONL(datasets, si, tools)
}

// Download saves the working set to target as dataset.jsonl.
func (w *Workspace) Download(ctx context.Context, target models.SaveTarget) error {
	datasets, si, tools := w.snapshot()
	return models.DownloadJSONL(ctx, target, datasets, si, tools)
}

func (w *Workspace) snapshot() ([]models.Dataset, string, []models.Tool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return models.CloneDatasets(w.datasets), w.systemInstruction, models.CloneTools(w.tools)
}

func (w *Workspace) indexLocked(id string) int {
	for i := range w.datasets {
		if w.datasets[i].ID == id {
			return i
		}
	}
	return -1
}

// uniqueIDLocked draws ids until one is not already in use.
func (w *Workspace) uniqueIDLocked() string {
	for {
		id := w.newID()
		if w.indexLocked(id) < 0 {
			return id
		}
	}
}
