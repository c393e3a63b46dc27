package estimator

import (
	"encoding/json"
	"fmt"

	apperrors "pair_trader/pkg/errors"
	"pair_trader/pkg/ringbuffer"
)

// Snapshot is the serializable form of the estimator state. Restoring a
// snapshot and resuming updates produces results identical to uninterrupted
// operation.
type Snapshot struct {
	State            [2]float64    `json:"state"`
	Covariance       [2][2]float64 `json:"covariance"`
	ProcessNoise     float64       `json:"process_noise"`
	ObservationNoise float64       `json:"observation_noise"`
	LastResidual     float64       `json:"last_residual"`
	Residuals        []float64     `json:"residuals"`
	ResidualWindow   int           `json:"residual_window"`
}

// Snapshot captures the full estimator state
func (k *KalmanSpread) Snapshot() *Snapshot {
	return &Snapshot{
		State:            k.state,
		Covariance:       k.cov,
		ProcessNoise:     k.q,
		ObservationNoise: k.r,
		LastResidual:     k.lastResidual,
		Residuals:        k.residuals.Values(),
		ResidualWindow:   k.residuals.Cap(),
	}
}

// Restore rebuilds an estimator from a snapshot
func Restore(snap *Snapshot) (*KalmanSpread, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", apperrors.ErrCorruptSnapshot)
	}
	if snap.ResidualWindow <= 0 {
		return nil, fmt.Errorf("%w: residual window %d", apperrors.ErrCorruptSnapshot, snap.ResidualWindow)
	}
	if len(snap.Residuals) > snap.ResidualWindow {
		return nil, fmt.Errorf("%w: residual history %d exceeds window %d", apperrors.ErrCorruptSnapshot, len(snap.Residuals), snap.ResidualWindow)
	}

	k := &KalmanSpread{
		state:        snap.State,
		cov:          snap.Covariance,
		q:            snap.ProcessNoise,
		r:            snap.ObservationNoise,
		lastResidual: snap.LastResidual,
		residuals:    ringbuffer.New(snap.ResidualWindow),
	}
	for _, r := range snap.Residuals {
		k.residuals.Push(r)
	}
	return k, nil
}

// Marshal serializes a snapshot for the state store
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot parses a stored snapshot blob
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse estimator snapshot: %w", err)
	}
	return &snap, nil
}
