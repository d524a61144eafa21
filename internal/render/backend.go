package render

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/facefit/internal/face"
	"github.com/cwbudde/facefit/internal/fit"
)

// Backend renders one parameter vector synchronously. Implementations must be
// safe for concurrent use by the Loop's workers.
type Backend interface {
	Render(ctx context.Context, params fit.ParamVector) (*fit.Observation, error)
}

// Kind identifies a backend implementation
type Kind string

const (
	KindCPU    Kind = "cpu"
	KindRemote Kind = "grpc"
)

var (
	// ErrUnknownBackend is returned when the name does not match a known backend
	ErrUnknownBackend = errors.New("unknown renderer backend")
	// ErrBackendUnavailable indicates the backend lacks what it needs to run
	ErrBackendUnavailable = errors.New("renderer backend unavailable")
)

var noopCleanup = func() {}

// NormalizeBackend maps arbitrary user input to a canonical backend identifier
func NormalizeBackend(name string) Kind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cpu":
		return KindCPU
	case "grpc", "remote":
		return KindRemote
	default:
		return Kind(name)
	}
}

// SupportedBackends returns the backends understood by NewBackend
func SupportedBackends() []Kind {
	return []Kind{KindCPU, KindRemote}
}

// BackendConfig selects and configures a backend
type BackendConfig struct {
	Name    string
	Model   *face.ModelData
	Rows    int
	Cols    int
	Address string
}

// NewBackend constructs the requested backend and returns a cleanup hook
func NewBackend(cfg BackendConfig) (Backend, func(), error) {
	switch kind := NormalizeBackend(cfg.Name); kind {
	case KindCPU:
		r, err := NewCPURenderer(cfg.Model, cfg.Rows, cfg.Cols)
		if err != nil {
			return nil, noopCleanup, err
		}
		return r, noopCleanup, nil
	case KindRemote:
		if cfg.Address == "" {
			return nil, noopCleanup, fmt.Errorf("%w: %s requires an address", ErrBackendUnavailable, kind)
		}
		remote, err := DialRemote(cfg.Address)
		if err != nil {
			return nil, noopCleanup, err
		}
		return remote, func() { _ = remote.Close() }, nil
	default:
		return nil, noopCleanup, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Name)
	}
}
