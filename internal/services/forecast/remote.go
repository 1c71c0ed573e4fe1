package forecast

import (
	"context"
	"fmt"
	"time"

	xhttp "BrentCast/pkg/http"
)

// HTTPServiceBase wraps the shared HTTP client for model servers that speak JSON.
type HTTPServiceBase struct {
	baseURL string
	client  *xhttp.Client
}

func NewHTTPServiceBase(baseURL string, timeout time.Duration) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPServiceBase{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// PostJSON posts payload to baseURL+path and decodes the JSON reply into dest.
func (b *HTTPServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("model server client not initialized")
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     b.baseURL + path,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// tfServingRequest and tfServingResponse follow the TensorFlow Serving REST
// predict API (row format).
type tfServingRequest struct {
	Instances [][][]float64 `json:"instances"`
}

type tfServingResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// RemoteNetwork runs sequence inference on an external model server.
type RemoteNetwork struct {
	base *HTTPServiceBase
	path string
}

func NewRemoteNetwork(endpoint, path string, timeout time.Duration) *RemoteNetwork {
	if path == "" {
		path = "/v1/models/lstm:predict"
	}
	return &RemoteNetwork{base: NewHTTPServiceBase(endpoint, timeout), path: path}
}

func (r *RemoteNetwork) Infer(ctx context.Context, sequence []float64) ([]float64, error) {
	// (batch=1, timesteps=len, features=1)
	steps := make([][]float64, len(sequence))
	for i, v := range sequence {
		steps[i] = []float64{v}
	}

	var resp tfServingResponse
	if err := r.base.PostJSON(ctx, r.path, tfServingRequest{Instances: [][][]float64{steps}}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("model server: %s", resp.Error)
	}
	if len(resp.Predictions) == 0 || len(resp.Predictions[0]) == 0 {
		return nil, fmt.Errorf("model server returned no predictions")
	}
	return resp.Predictions[0], nil
}

func (r *RemoteNetwork) Backend() string { return "remote" }
