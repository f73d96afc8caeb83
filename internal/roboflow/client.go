// Package roboflow talks to the Roboflow REST API to export and download
// dataset versions.
package roboflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"beveragedetect/internal/dataset"
	"beveragedetect/internal/logger"
)

var ErrMissingAPIKey = errors.New("`ROBOFLOW_API_KEY` not found in the environment! Please set " +
	"`ROBOFLOW_API_KEY` to your API key to connect with Roboflow!")

// ErrExportNotReady is returned when the export is still being generated
// after all polls.
var ErrExportNotReady = errors.New("roboflow export not ready")

const (
	DefaultWorkspace = "roboflow-universe-projects"
	DefaultProject   = "beverage-containers-3atxb"
	DefaultVersion   = 3
	DefaultFormat    = "yolov5"
)

// Version identifies one dataset version on Roboflow.
type Version struct {
	Workspace string
	Project   string
	Number    int
}

func (v Version) String() string {
	return fmt.Sprintf("%s/%s/%d", v.Workspace, v.Project, v.Number)
}

// Client is a minimal Roboflow API client.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	logger       *logger.Logger
	pollInterval time.Duration
	maxPolls     int
}

// NewClient returns ErrMissingAPIKey when apiKey is empty.
func NewClient(apiKey, baseURL string, logger *logger.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Minute},
		logger:       logger,
		pollInterval: 5 * time.Second,
		maxPolls:     60,
	}, nil
}

type exportResponse struct {
	Export struct {
		Link string `json:"link"`
	} `json:"export"`
	Progress *float64 `json:"progress"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ExportLink asks Roboflow for a download link of the version in the given
// format. A missing export is requested once with a POST and then polled
// until ready.
func (c *Client) ExportLink(ctx context.Context, v Version, format string) (string, error) {
	endpoint, err := url.JoinPath(c.baseURL, v.Workspace, v.Project, strconv.Itoa(v.Number), format)
	if err != nil {
		return "", fmt.Errorf("build export url: %w", err)
	}
	endpoint += "?" + url.Values{"api_key": {c.apiKey}}.Encode()

	requested := false
	for attempt := 0; attempt < c.maxPolls; attempt++ {
		resp, err := c.fetchExport(ctx, http.MethodGet, endpoint)
		if err != nil {
			return "", err
		}
		if resp.Export.Link != "" {
			return resp.Export.Link, nil
		}

		if !requested && resp.Progress == nil {
			c.logger.Info("Requesting generation of %s in %s", v, format)
			resp, err = c.fetchExport(ctx, http.MethodPost, endpoint)
			if err != nil {
				return "", err
			}
			if resp.Export.Link != "" {
				return resp.Export.Link, nil
			}
			requested = true
		}

		progress := 0.0
		if resp.Progress != nil {
			progress = *resp.Progress
		}
		c.logger.Info("Export of %s in %s is being generated (%.0f%%)", v, format, progress*100)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrExportNotReady, v, format)
}

// fetchExport accepts 200 and 202; the latter means the export is still
// being generated.
func (c *Client) fetchExport(ctx context.Context, method, endpoint string) (*exportResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request export: %w", err)
	}
	defer res.Body.Close()

	var body exportResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode export response (status %d): %w", res.StatusCode, err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("roboflow: %s (status %d)", body.Error.Message, res.StatusCode)
	}
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("roboflow: unexpected status %d", res.StatusCode)
	}
	return &body, nil
}

// Download saves link to dest and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, link, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return 0, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download dataset: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download dataset: unexpected status %d", res.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, err
	}
	f, err := os.Create(dest)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, res.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return 0, fmt.Errorf("write %s: %w", dest, err)
	}
	return n, nil
}

// DownloadDataset exports the version, downloads and extracts it into
// location and rewrites data.yaml with absolute split paths. It returns the
// path of data.yaml.
func (c *Client) DownloadDataset(ctx context.Context, v Version, format, location string) (string, *dataset.DataConfig, error) {
	c.logger.Info("Requesting %s export of %s", format, v)
	link, err := c.ExportLink(ctx, v, format)
	if err != nil {
		return "", nil, err
	}

	archive, err := os.CreateTemp("", "roboflow-*.zip")
	if err != nil {
		return "", nil, err
	}
	archive.Close()
	defer os.Remove(archive.Name())

	size, err := c.Download(ctx, link, archive.Name())
	if err != nil {
		return "", nil, err
	}
	c.logger.Info("Downloaded %d bytes", size)

	files, err := dataset.ExtractZip(archive.Name(), location)
	if err != nil {
		return "", nil, err
	}
	c.logger.Info("Extracted %d files into %s", files, location)

	dataPath, cfg, err := dataset.PrepareDataFile(location)
	if err != nil {
		return "", nil, err
	}
	c.logger.Info("Dataset ready: %s (%d classes)", dataPath, cfg.NC)
	return dataPath, cfg, nil
}
