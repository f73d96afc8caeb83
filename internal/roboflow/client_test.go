package roboflow

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"beveragedetect/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datasetZip(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"data.yaml":          "train: ../train/images\nval: ../valid/images\nnc: 2\nnames: ['bottle', 'can']\nroboflow:\n  version: 3\n",
		"train/images/a.jpg": "jpeg",
		"valid/images/b.jpg": "jpeg",
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient("key-123", baseURL, logger.NewNop())
	require.NoError(t, err)
	c.pollInterval = time.Millisecond
	c.maxPolls = 5
	return c
}

func TestNewClient_MissingKey(t *testing.T) {
	_, err := NewClient("", "http://example.invalid", logger.NewNop())
	require.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, "`ROBOFLOW_API_KEY` not found in the environment! Please set `ROBOFLOW_API_KEY` to your API key to connect with Roboflow!", err.Error())
}

func TestDownloadDataset(t *testing.T) {
	archive := datasetZip(t)
	var polls atomic.Int32

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/roboflow-universe-projects/beverage-containers-3atxb/3/yolov5", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "key-123" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key"}}`))
			return
		}
		if polls.Add(1) == 1 {
			w.Write([]byte(`{"progress":0.5}`))
			return
		}
		w.Write([]byte(`{"export":{"link":"` + srv.URL + `/files/export.zip"}}`))
	})
	mux.HandleFunc("/files/export.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	location := filepath.Join(t.TempDir(), "dataset")
	version := Version{Workspace: DefaultWorkspace, Project: DefaultProject, Number: DefaultVersion}

	dataPath, cfg, err := client.DownloadDataset(context.Background(), version, DefaultFormat, location)
	require.NoError(t, err)

	assert.Equal(t, int32(2), polls.Load())
	assert.Equal(t, filepath.Join(location, "data.yaml"), dataPath)
	assert.Equal(t, 2, cfg.NC)
	assert.Equal(t, []string{"bottle", "can"}, cfg.Names.Sorted())

	absLocation, _ := filepath.Abs(location)
	assert.Equal(t, filepath.Join(absLocation, "train", "images"), cfg.Train)
	assert.Equal(t, filepath.Join(absLocation, "valid", "images"), cfg.Val)

	_, err = os.Stat(filepath.Join(location, "train", "images", "a.jpg"))
	assert.NoError(t, err)
}

func TestExportLink_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ws/denied/1/yolov5":
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"message":"forbidden"}}`))
		default:
			w.Write([]byte(`{"progress":0.1}`))
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.ExportLink(context.Background(), Version{"ws", "denied", 1}, "yolov5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")

	_, err = client.ExportLink(context.Background(), Version{"ws", "slow", 1}, "yolov5")
	assert.ErrorIs(t, err, ErrExportNotReady)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.ExportLink(ctx, Version{"ws", "slow", 1}, "yolov5")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExportLink_AcceptedWhileGenerating(t *testing.T) {
	var gets, posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		if gets.Add(1) == 1 {
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"progress":0.5}`))
			return
		}
		w.Write([]byte(`{"export":{"link":"https://example.invalid/export.zip"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	link, err := client.ExportLink(context.Background(), Version{"ws", "proj", 1}, "yolov5")
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid/export.zip", link)
	assert.Equal(t, int32(2), gets.Load())
	assert.Equal(t, int32(0), posts.Load())
}

func TestExportLink_RequestsMissingExport(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			posts.Add(1)
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"progress":0}`))
		case posts.Load() == 0:
			w.Write([]byte(`{"export":{}}`))
		default:
			w.Write([]byte(`{"export":{"link":"https://example.invalid/export.zip"}}`))
		}
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	link, err := client.ExportLink(context.Background(), Version{"ws", "proj", 1}, "yolov5")
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid/export.zip", link)
	assert.Equal(t, int32(1), posts.Load())
}

func TestVersionString(t *testing.T) {
	v := Version{Workspace: DefaultWorkspace, Project: DefaultProject, Number: DefaultVersion}
	assert.Equal(t, "roboflow-universe-projects/beverage-containers-3atxb/3", v.String())
}
