package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/wonny/demandcast/internal/contracts"
)

// Memory is an in-process ArtifactStore. Artifacts round-trip through JSON so
// callers can never mutate stored state through a retained pointer.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]map[contracts.Stage][]byte
}

// NewMemory creates an empty in-memory artifact store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]map[contracts.Stage][]byte),
	}
}

// Write persists one stage artifact for a session, replacing any previous one.
func (m *Memory) Write(ctx context.Context, sessionID string, stage contracts.Stage, artifact interface{}) error {
	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("encode %s artifact: %w", stage, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions[sessionID] == nil {
		m.sessions[sessionID] = make(map[contracts.Stage][]byte)
	}
	m.sessions[sessionID][stage] = data
	return nil
}

// Read loads one stage artifact into dest. Returns a NotFoundError when the
// stage has no artifact for the session.
func (m *Memory) Read(ctx context.Context, sessionID string, stage contracts.Stage, dest interface{}) error {
	m.mu.RLock()
	data, ok := m.sessions[sessionID][stage]
	m.mu.RUnlock()

	if !ok {
		return contracts.NotFoundf(string(stage), "no %s artifact for session %s", stage, sessionID)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s artifact: %w", stage, err)
	}
	return nil
}

// Delete removes the given stage artifacts for a session. Missing stages are
// not an error.
func (m *Memory) Delete(ctx context.Context, sessionID string, stages ...contracts.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	artifacts, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	for _, st := range stages {
		delete(artifacts, st)
	}
	if len(artifacts) == 0 {
		delete(m.sessions, sessionID)
	}
	return nil
}

// Sessions lists every session id with at least one artifact, sorted.
func (m *Memory) Sessions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
