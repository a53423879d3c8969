package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gtfodev/neolink/pkg/camera"
	"github.com/gtfodev/neolink/pkg/config"
	"github.com/gtfodev/neolink/pkg/discovery"
	"github.com/gtfodev/neolink/pkg/registry"
)

func TestHandleCameras(t *testing.T) {
	reg := registry.New(&discovery.Engine{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, reg.Add(ctx, camera.Config{Name: "front-door", Enabled: false}))

	s := NewServer(reg, &config.Config{Bind: "0.0.0.0"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/cameras", nil)
	w := httptest.NewRecorder()
	s.handleCameras(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got []CameraInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "front-door", got[0].Name)
}

func TestHandleConfig(t *testing.T) {
	reg := registry.New(&discovery.Engine{}, nil)
	s := NewServer(reg, &config.Config{Bind: "127.0.0.1"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	w := httptest.NewRecorder()
	s.handleConfig(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got config.Config
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "127.0.0.1", got.Bind)
}

func TestHandleCamerasRejectsNonGet(t *testing.T) {
	reg := registry.New(&discovery.Engine{}, nil)
	s := NewServer(reg, &config.Config{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/cameras", nil)
	w := httptest.NewRecorder()
	s.handleCameras(w, req)

	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
