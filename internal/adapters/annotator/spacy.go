// Package annotator provides the linguistic annotation adapter.
// Clean Architecture: Adapter implementing ports.Annotator.
// Calls an external Python (spaCy) service over HTTP.
package annotator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
	"github.com/0xcro3dile/writecheck-go/internal/logging"
)

// SpacyAnnotator implements ports.Annotator against the NLP sidecar.
type SpacyAnnotator struct {
	serviceURL string
	client     *http.Client
	pythonCmd  *exec.Cmd
}

// NewSpacyAnnotator creates an annotator calling the service at serviceURL.
func NewSpacyAnnotator(serviceURL string, timeout time.Duration) *SpacyAnnotator {
	if serviceURL == "" {
		serviceURL = "http://127.0.0.1:5001"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SpacyAnnotator{
		serviceURL: serviceURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type annotateRequest struct {
	Text string `json:"text"`
}

// annotateResponse is the sidecar response format.
type annotateResponse struct {
	Sentences []entities.Sentence `json:"sentences"`
	Model     string              `json:"model,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Annotate returns the sentence and token view of text.
// Offsets in the view are code point offsets into text.
func (a *SpacyAnnotator) Annotate(ctx context.Context, text string) (*entities.AnnotationView, error) {
	body, err := json.Marshal(annotateRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.serviceURL+"/annotate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling annotation service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var result annotateResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("annotation error: %s", result.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("annotation service returned %d", resp.StatusCode)
	}

	return &entities.AnnotationView{Sentences: result.Sentences}, nil
}

// StartService starts the sidecar script with python3 and waits until it
// answers /health or ctx ends. The returned function stops it.
func (a *SpacyAnnotator) StartService(ctx context.Context, scriptPath string) (func(), error) {
	if _, err := os.Stat(scriptPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("annotation script not found at %s", scriptPath)
	}

	a.pythonCmd = exec.Command("python3", scriptPath)
	a.pythonCmd.Stdout = os.Stderr
	a.pythonCmd.Stderr = os.Stderr

	if err := a.pythonCmd.Start(); err != nil {
		return nil, fmt.Errorf("starting annotation service: %w", err)
	}

	cleanup := func() {
		if a.pythonCmd != nil && a.pythonCmd.Process != nil {
			a.pythonCmd.Process.Kill()
			a.pythonCmd.Wait()
		}
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for !a.IsServiceHealthy(ctx) {
		select {
		case <-ctx.Done():
			cleanup()
			return nil, fmt.Errorf("waiting for annotation service: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	logging.Info("annotation service started", "script", scriptPath, "url", a.serviceURL)
	return cleanup, nil
}

// IsServiceHealthy checks if the sidecar is answering.
func (a *SpacyAnnotator) IsServiceHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.serviceURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
