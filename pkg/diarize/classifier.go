package diarize

import (
	"errors"
	"fmt"
	"time"

	"github.com/haivivi/diarize/pkg/vecid"
	"github.com/haivivi/diarize/pkg/voicefeat"
)

var (
	errWindowTooSmall = errors.New("diarize: cluster window too small")
	errNoise          = errors.New("diarize: nearest neighbor is noise")
)

// classify assigns rec to an identity, creating or updating its profile.
// rec is already the newest history entry.
func (e *Engine) classify(rec voicefeat.Record, speech time.Duration) (string, Mode) {
	if e.history.Len() >= e.cfg.MinClusterHistory {
		label, err := e.clusterLabel(rec)
		if err == nil {
			e.counters.Clustering++
			return e.assignCluster(label, rec, speech), ModeClustering
		}
		e.counters.ClusterFallbacks++
		e.log.Debug("clustering fell back to baseline", "reason", err)
	}
	e.counters.Baseline++
	return e.baseline(rec, speech), ModeBaseline
}

// baseline matches rec to the nearest centroid, minting a new identity
// when the registry is empty or the nearest centroid is farther than the
// sensitivity.
func (e *Engine) baseline(rec voicefeat.Record, speech time.Duration) string {
	nearest, dist := e.registry.Nearest(rec.Vector)
	if nearest != nil && dist <= e.sensitivity {
		if _, err := e.registry.Append(nearest.ID, rec, speech); err == nil {
			return nearest.ID
		}
	}
	return e.mint(rec, speech)
}

// mint creates the next numbered identity, skipping any number a
// clustering label already claimed.
func (e *Engine) mint(rec voicefeat.Record, speech time.Duration) string {
	for {
		e.counter++
		id := identity(e.counter)
		if _, err := e.registry.Create(id, rec, speech); err == nil {
			e.log.Debug("new speaker", "id", id)
			return id
		}
	}
}

// clusterLabel standardizes the recent history window, clusters it and
// returns the label of the window record nearest to rec.
func (e *Engine) clusterLabel(rec voicefeat.Record) (int, error) {
	window := e.history.Last(e.cfg.ClusterWindow)
	if len(window) < e.cfg.MinClusterHistory {
		return vecid.Noise, errWindowTooSmall
	}
	vectors := make([][]float64, len(window))
	for i, r := range window {
		vectors[i] = r.Vector
	}

	scaler, err := vecid.FitScaler(vectors)
	if err != nil {
		return vecid.Noise, fmt.Errorf("diarize: standardize window: %w", err)
	}
	z := scaler.TransformAll(vectors)
	labels := vecid.DBSCAN(z, e.cfg.ClusterEps, e.cfg.ClusterMinSamples)
	e.log.Debug("clustered history", "window", len(window), "clusters", vecid.NumClusters(labels))

	i, _ := vecid.Nearest(z, scaler.Transform(rec.Vector))
	if i < 0 || labels[i] == vecid.Noise {
		return vecid.Noise, errNoise
	}
	return labels[i], nil
}

// assignCluster maps label L to "Speaker L+1", creating the profile if
// needed, and keeps the counter ahead of every cluster-derived identity.
func (e *Engine) assignCluster(label int, rec voicefeat.Record, speech time.Duration) string {
	id := identity(label + 1)
	e.counter = max(e.counter, label+1)
	if _, ok := e.registry.Get(id); ok {
		if _, err := e.registry.Append(id, rec, speech); err != nil {
			e.log.Warn("append to cluster speaker", "id", id, "error", err)
			return id
		}
	} else {
		if _, err := e.registry.Create(id, rec, speech); err != nil {
			e.log.Warn("create cluster speaker", "id", id, "error", err)
			return id
		}
		e.log.Debug("new speaker", "id", id, "cluster", label)
	}
	// The profile was just written, so it cannot be unknown.
	_ = e.registry.SetCluster(id, label)
	return id
}
