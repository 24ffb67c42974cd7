package dispatcher

import (
	"context"

	"github.com/vogiaan1904/rediclaim/internal/models"
)

// Dispatcher delivers an admitted batch downstream. The variant is picked once
// at startup from configuration, never per message.
type Dispatcher interface {
	DispatchBatch(ctx context.Context, eventID string, entries []models.DispatchEntry) error
}
