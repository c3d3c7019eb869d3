package service

import (
	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/store"
	"go.uber.org/zap"
)

// Engine wires the full decay engine over one database handle. Embedding
// callers construct it once and reach the services through its fields; the
// daemon additionally runs the background workers via Start/Stop.
type Engine struct {
	Classifier    *Classifier
	WorkingMemory *WorkingMemoryService
	Attention     *AttentionService
	Gate          *GateService
	Consolidation *ConsolidationService
	Archival      *ArchivalService
}

func NewEngine(db *store.DB, cfg *config.Config, logger *zap.Logger) *Engine {
	memories := store.NewMemoryStore(db)
	relations := store.NewRelationStore(db)
	entries := store.NewWorkingMemoryStore(db)
	conflicts := store.NewConflictStore(db)
	checkpoints := store.NewCheckpointStore(db)

	classifier := NewClassifier(cfg, logger)
	wm := NewWorkingMemoryService(entries, classifier, cfg, logger)

	return &Engine{
		Classifier:    classifier,
		WorkingMemory: wm,
		Attention:     NewAttentionService(wm, memories, relations, classifier, cfg, logger),
		Gate:          NewGateService(conflicts, cfg, logger),
		Consolidation: NewConsolidationService(memories, relations, checkpoints, cfg, logger),
		Archival:      NewArchivalService(memories, wm, cfg, logger),
	}
}

// Start launches the background maintenance workers.
func (e *Engine) Start() {
	e.Consolidation.Start()
	e.Archival.Start()
}

// Stop halts the background workers and waits for in-flight runs.
func (e *Engine) Stop() {
	e.Consolidation.Stop()
	e.Archival.Stop()
}
