package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/vogiaan1904/rediclaim/internal/errors"
	"github.com/vogiaan1904/rediclaim/internal/models"
	"github.com/vogiaan1904/rediclaim/pkg/logger"
)

// IssueRequestBatch is the payload pushed to the issuer in http dispatch mode.
type IssueRequestBatch struct {
	EventID string                 `json:"event_id"`
	Entries []models.DispatchEntry `json:"entries"`
}

// httpDispatcher pushes the whole batch to the issuer synchronously. Best
// effort: no ordering guarantee across batches, no redelivery.
type httpDispatcher struct {
	baseURL string
	cli     *http.Client
	l       logger.Logger
}

func NewHTTPDispatcher(baseURL string, l logger.Logger) Dispatcher {
	return &httpDispatcher{
		baseURL: baseURL,
		cli: &http.Client{
			Timeout: 10 * time.Second,
		},
		l: l,
	}
}

func (d *httpDispatcher) DispatchBatch(ctx context.Context, eventID string, entries []models.DispatchEntry) error {
	body, err := json.Marshal(IssueRequestBatch{
		EventID: eventID,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal issue request batch: %w", err)
	}

	url := d.baseURL + "/api/v1/gate/issue-requests"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.cli.Do(req)
	if err != nil {
		d.l.Errorf(ctx, "dispatcher.http_dispatcher.DispatchBatch: %v", err)
		return fmt.Errorf("%w: %v", apperrors.ErrDispatcherUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		d.l.Errorf(ctx, "dispatcher.http_dispatcher.DispatchBatch: issuer returned %d", resp.StatusCode)
		return fmt.Errorf("issuer rejected batch: status %d", resp.StatusCode)
	}

	d.l.Debugf(ctx, "Pushed batch to issuer: eventID=%s count=%d", eventID, len(entries))

	return nil
}
