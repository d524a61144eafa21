package render

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cwbudde/facefit/internal/fit"
)

func startBufconnServer(t *testing.T, backend Backend) *RemoteBackend {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Serve(ctx, lis, backend, nil); err != nil {
			t.Errorf("Serve failed: %v", err)
		}
	}()

	remote, err := DialRemote("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("DialRemote failed: %v", err)
	}
	t.Cleanup(func() {
		remote.Close()
		cancel()
		<-done
	})
	return remote
}

func TestRemoteBackendMatchesLocal(t *testing.T) {
	local := newTestRenderer(t, 2, 16)
	remote := startBufconnServer(t, local)

	params := fit.DefaultParamVector(2)
	params.Coefficients[1] = -1.5
	params.Directed = [3]float64{0.2, 0.4, 1}

	want, err := local.Render(context.Background(), params)
	if err != nil {
		t.Fatalf("Local render failed: %v", err)
	}
	got, err := remote.Render(context.Background(), params)
	if err != nil {
		t.Fatalf("Remote render failed: %v", err)
	}

	if got.Rows != want.Rows || got.Cols != want.Cols || got.Channels != want.Channels {
		t.Fatalf("Shape mismatch: got %dx%dx%d", got.Rows, got.Cols, got.Channels)
	}
	for i := range want.Pix {
		if got.Pix[i] != want.Pix[i] {
			t.Fatalf("Pixel value %d differs: %f vs %f", i, got.Pix[i], want.Pix[i])
		}
	}
}

func TestRemoteBackendPropagatesErrors(t *testing.T) {
	remote := startBufconnServer(t, &uniformBackend{rows: 1, cols: 1, err: errors.New("gpu on fire")})

	_, err := remote.Render(context.Background(), fit.DefaultParamVector(1))
	if status.Code(errors.Unwrap(err)) != codes.Internal {
		t.Errorf("Expected Internal status, got %v", err)
	}
}

func TestServiceRejectsBadRequests(t *testing.T) {
	svc := NewService(&uniformBackend{rows: 1, cols: 1}, nil)

	tests := []struct {
		name string
		in   *structpb.ListValue
	}{
		{name: "nil", in: nil},
		{name: "too short", in: &structpb.ListValue{Values: []*structpb.Value{structpb.NewNumberValue(1)}}},
		{name: "not a number", in: &structpb.ListValue{Values: []*structpb.Value{
			structpb.NewStringValue("x"), structpb.NewNumberValue(0), structpb.NewNumberValue(0), structpb.NewNumberValue(0),
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Render(context.Background(), tt.in)
			if status.Code(err) != codes.InvalidArgument {
				t.Errorf("Expected InvalidArgument, got %v", err)
			}
		})
	}
}

func TestObservationCodec(t *testing.T) {
	obs := fit.NewObservation(2, 3, 2)
	for i := range obs.Pix {
		obs.Pix[i] = float32(i) * 0.25
	}

	decoded, err := DecodeObservation(EncodeObservation(obs))
	if err != nil {
		t.Fatalf("DecodeObservation failed: %v", err)
	}
	if decoded.Rows != 2 || decoded.Cols != 3 || decoded.Channels != 2 {
		t.Fatalf("Unexpected shape %dx%dx%d", decoded.Rows, decoded.Cols, decoded.Channels)
	}
	for i := range obs.Pix {
		if decoded.Pix[i] != obs.Pix[i] {
			t.Errorf("Pixel value %d: expected %f, got %f", i, obs.Pix[i], decoded.Pix[i])
		}
	}

	for _, bad := range [][]byte{nil, make([]byte, 8), EncodeObservation(obs)[:20]} {
		if _, err := DecodeObservation(bad); !errors.Is(err, ErrMalformedObservation) {
			t.Errorf("Expected ErrMalformedObservation for %d bytes, got %v", len(bad), err)
		}
	}
}

func TestDecodeObservationRejectsOverflowingShape(t *testing.T) {
	// 2^31 x 2^31 x 4 wraps to zero when multiplied
	header := make([]byte, 12)
	binary.LittleEndian.PutUint32(header[0:], 1<<31)
	binary.LittleEndian.PutUint32(header[4:], 1<<31)
	binary.LittleEndian.PutUint32(header[8:], 4)

	if obs, err := DecodeObservation(header); !errors.Is(err, ErrMalformedObservation) {
		t.Errorf("Expected ErrMalformedObservation, got %v (observation %v)", err, obs)
	}

	// a header that disagrees with the payload length
	obs := fit.NewObservation(2, 2, 2)
	data := EncodeObservation(obs)
	binary.LittleEndian.PutUint32(data[4:], 3)
	if _, err := DecodeObservation(data); !errors.Is(err, ErrMalformedObservation) {
		t.Errorf("Expected ErrMalformedObservation for mismatched shape, got %v", err)
	}
}

func TestNewBackend(t *testing.T) {
	model := newTestRenderer(t, 0, 4).model

	tests := []struct {
		name    string
		cfg     BackendConfig
		wantErr error
	}{
		{name: "cpu", cfg: BackendConfig{Name: "CPU", Model: model, Rows: 4, Cols: 4}},
		{name: "default", cfg: BackendConfig{Model: model, Rows: 4, Cols: 4}},
		{name: "remote without address", cfg: BackendConfig{Name: "grpc"}, wantErr: ErrBackendUnavailable},
		{name: "unknown", cfg: BackendConfig{Name: "vulkan"}, wantErr: ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, cleanup, err := NewBackend(tt.cfg)
			defer cleanup()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend failed: %v", err)
			}
			if _, ok := backend.(*CPURenderer); !ok {
				t.Errorf("Expected *CPURenderer, got %T", backend)
			}
		})
	}

	remote, cleanup, err := NewBackend(BackendConfig{Name: "remote", Address: "localhost:0"})
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}
	defer cleanup()
	if _, ok := remote.(*RemoteBackend); !ok {
		t.Errorf("Expected *RemoteBackend, got %T", remote)
	}
}
