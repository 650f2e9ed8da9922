package driven

import (
	"context"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
)

// ExchangeClient is the remote document-exchange service as seen by the core.
// Implementations handle authentication, transport and wire format.
type ExchangeClient interface {
	// DownloadNext pulls the next pending document for the connector and
	// stages it in the local folder. Remote and transport failures are
	// reported as a DownloadError result, never as a panic.
	DownloadNext(ctx context.Context, connector domain.Connector, traceID string) domain.DownloadResult

	// Acknowledge confirms receipt of a downloaded document.
	// The service will not offer the document again once acknowledged.
	Acknowledge(ctx context.Context, connector domain.Connector, documentID, traceID string) error

	// Upload sends the file to the service on behalf of the connector.
	Upload(ctx context.Context, connector domain.Connector, file, traceID string) domain.UploadResult

	// RenewSecret asks the service for a replacement client secret.
	RenewSecret(ctx context.Context, traceID string) (string, error)
}
