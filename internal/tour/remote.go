package tour

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rahul/onboardly/internal/governance"
)

// DefaultQueryPath is the query function that resolves a tour by script id.
const DefaultQueryPath = "public:getTourByScriptId"

// RemoteSource fetches definitions from a query endpoint that takes
// {"path","args","format"} and answers {"status","value","errorMessage"}.
// Concurrent loads of the same tour share one request.
type RemoteSource struct {
	Endpoint  string
	QueryPath string
	Client    *http.Client
	Policy    governance.PolicyEngine

	group singleflight.Group
}

func NewRemoteSource(endpoint string, policy governance.PolicyEngine) *RemoteSource {
	return &RemoteSource{
		Endpoint:  endpoint,
		QueryPath: DefaultQueryPath,
		Client:    &http.Client{Timeout: 15 * time.Second},
		Policy:    policy,
	}
}

type queryRequest struct {
	Path   string            `json:"path"`
	Args   map[string]string `json:"args"`
	Format string            `json:"format"`
}

type queryResponse struct {
	Status       string          `json:"status"`
	Value        json.RawMessage `json:"value"`
	ErrorMessage string          `json:"errorMessage"`
}

func (r *RemoteSource) Load(ctx context.Context, tourID string) (*Definition, error) {
	v, err, _ := r.group.Do(tourID, func() (any, error) {
		return r.fetch(ctx, tourID)
	})
	if err != nil {
		return nil, &LoadError{TourID: tourID, Err: err}
	}
	return v.(*Definition), nil
}

func (r *RemoteSource) fetch(ctx context.Context, tourID string) (*Definition, error) {
	body, err := json.Marshal(queryRequest{
		Path:   r.QueryPath,
		Args:   map[string]string{"scriptId": tourID},
		Format: "json",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("failed to fetch config: status code %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if qr.Status == "error" {
		return nil, fmt.Errorf("query failed: %s", qr.ErrorMessage)
	}
	if len(qr.Value) == 0 || string(qr.Value) == "null" {
		return nil, errors.New("tour not found")
	}

	var def Definition
	if err := json.Unmarshal(qr.Value, &def); err != nil {
		return nil, fmt.Errorf("failed to parse tour: %w", err)
	}
	if errs := Errors(Validate(ctx, &def, r.Policy)); len(errs) > 0 {
		return nil, errors.Join(toErrors(errs)...)
	}
	return &def, nil
}
