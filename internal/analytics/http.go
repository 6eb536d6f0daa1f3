package analytics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// HTTPSink POSTs each event to a collector endpoint on its own goroutine.
type HTTPSink struct {
	Endpoint string
	Client   *http.Client
	// OnError receives delivery failures; defaults to log.Printf.
	OnError func(evt Event, err error)

	wg sync.WaitGroup
}

func NewHTTPSink(endpoint string) *HTTPSink {
	return &HTTPSink{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Track submits evt without waiting. The request is detached from ctx's
// cancellation so that teardown does not drop the final events.
func (s *HTTPSink) Track(ctx context.Context, evt Event) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.post(context.WithoutCancel(ctx), evt); err != nil {
			s.fail(evt, err)
		}
	}()
}

// Flush waits for in-flight submissions or ctx expiry.
func (s *HTTPSink) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *HTTPSink) post(ctx context.Context, evt Event) error {
	body, err := evt.MarshalWire()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status code %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPSink) fail(evt Event, err error) {
	if s.OnError != nil {
		s.OnError(evt, err)
		return
	}
	log.Printf("analytics: %s for %s not delivered: %v", evt.Type, evt.TourID, err)
}
