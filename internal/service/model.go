package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/wellspring/internal/bayes"
	"github.com/Harshitk-cp/wellspring/internal/netdef"
	"go.uber.org/zap"
)

var ErrNoModelSource = errors.New("model is embedded and cannot be reloaded")

// Model is one immutable snapshot of the loaded network together with the
// analyzers bound to it. Requests capture a snapshot once and use it
// throughout, so a concurrent reload never mixes two networks in one answer.
type Model struct {
	Name        string
	Description string
	Source      string
	Checksum    string
	LoadedAt    time.Time

	Network     *bayes.Network
	Engine      *bayes.Engine
	Sensitivity *bayes.SensitivityAnalyzer
	Scenario    *bayes.ScenarioEstimator
}

func newModel(def *netdef.Definition, raw []byte, source string, h bayes.Heuristic) (*Model, error) {
	net, err := netdef.Build(def)
	if err != nil {
		return nil, err
	}
	engine := bayes.NewEngine(net, bayes.WithHeuristic(h))
	sum := sha256.Sum256(raw)
	return &Model{
		Name:        def.Name,
		Description: def.Description,
		Source:      source,
		Checksum:    hex.EncodeToString(sum[:8]),
		LoadedAt:    time.Now().UTC(),
		Network:     net,
		Engine:      engine,
		Sensitivity: bayes.NewSensitivityAnalyzer(engine),
		Scenario:    bayes.NewScenarioEstimator(engine),
	}, nil
}

// ModelService owns the current model and swaps it atomically on reload.
type ModelService struct {
	path      string
	heuristic bayes.Heuristic
	logger    *zap.Logger

	current atomic.Pointer[Model]

	mu      sync.Mutex
	modTime time.Time

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewModelService loads the definition at path, or the embedded borehole
// network when path is empty. An invalid initial definition is fatal.
func NewModelService(path string, heuristic bayes.Heuristic, logger *zap.Logger) (*ModelService, error) {
	s := &ModelService{
		path:      path,
		heuristic: heuristic,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}

	if path == "" {
		m, err := newModel(netdef.Default(), netdef.DefaultSource(), "embedded", heuristic)
		if err != nil {
			return nil, fmt.Errorf("embedded model: %w", err)
		}
		s.current.Store(m)
		return s, nil
	}

	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active snapshot. It is never nil.
func (s *ModelService) Current() *Model {
	return s.current.Load()
}

// Reload rebuilds the model from its file. On failure the previous model
// stays active and the error is returned.
func (s *ModelService) Reload() (*Model, error) {
	if s.path == "" {
		return nil, ErrNoModelSource
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		modelReloads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("stat model: %w", err)
	}
	def, raw, err := netdef.Load(s.path)
	if err != nil {
		modelReloads.WithLabelValues("error").Inc()
		return nil, err
	}
	m, err := newModel(def, raw, s.path, s.heuristic)
	if err != nil {
		modelReloads.WithLabelValues("invalid").Inc()
		return nil, err
	}

	s.current.Store(m)
	s.modTime = info.ModTime()
	modelReloads.WithLabelValues("ok").Inc()
	s.logger.Info("model loaded",
		zap.String("name", m.Name),
		zap.String("source", m.Source),
		zap.String("checksum", m.Checksum),
		zap.Int("variables", m.Network.Len()))
	return m, nil
}

func (s *ModelService) SetInterval(d time.Duration) {
	s.interval = d
}

// Start polls the definition file and reloads it when its modification time
// changes. It does nothing for the embedded model or a zero interval.
func (s *ModelService) Start() {
	if s.path == "" || s.interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("model watcher started",
			zap.String("path", s.path),
			zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				s.checkForChange()
			case <-s.stopCh:
				s.logger.Info("model watcher stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the watcher.
func (s *ModelService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *ModelService) checkForChange() {
	info, err := os.Stat(s.path)
	if err != nil {
		s.logger.Warn("model file unavailable", zap.String("path", s.path), zap.Error(err))
		return
	}

	s.mu.Lock()
	changed := !info.ModTime().Equal(s.modTime)
	s.mu.Unlock()
	if !changed {
		return
	}

	if _, err := s.Reload(); err != nil {
		s.logger.Error("model reload failed, keeping previous model",
			zap.String("path", s.path),
			zap.Error(err))
		// remember the broken revision so it is not retried every tick
		s.mu.Lock()
		s.modTime = info.ModTime()
		s.mu.Unlock()
	}
}
