package rulesource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// RemoteSource fetches a JSON rule document over HTTP.
type RemoteSource struct {
	url    string
	client *http.Client
}

// NewRemoteSource creates an HTTP rule source.
func NewRemoteSource(url string) *RemoteSource {
	return &RemoteSource{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *RemoteSource) Name() string { return "remote:" + s.url }

// Load fetches and normalizes the rule document.
func (s *RemoteSource) Load(ctx context.Context) ([]entities.Rule, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching rules: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rule endpoint returned %d: %s", resp.StatusCode, body)
	}

	records, err := DecodeRecords(resp.Body)
	if err != nil {
		return nil, err
	}
	return normalizeAndLog(s.Name(), records), nil
}
