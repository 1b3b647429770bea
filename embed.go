package reverie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Task types passed to EmbeddingProvider.Embed. Backends without
// task-specific modes ignore them.
const (
	TaskQuery    = "RETRIEVAL_QUERY"
	TaskDocument = "RETRIEVAL_DOCUMENT"
)

// postJSON sends body to url and decodes a 200 reply into out. Non-200
// replies become a *statusError carrying the first 200 bytes of the body.
func postJSON(ctx context.Context, client *http.Client, service, url string, header http.Header, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return &statusError{service: service, status: resp.StatusCode, body: string(b[:min(len(b), 200)])}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// toFloat32 narrows an API vector for compact storage.
func toFloat32(in []float64) []float32 {
	vec := make([]float32, len(in))
	for i, v := range in {
		vec[i] = float32(v)
	}
	return vec
}
