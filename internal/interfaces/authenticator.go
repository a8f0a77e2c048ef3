package interfaces

import (
	"context"

	"github.com/ternarybob/checkin/internal/models"
)

// Authenticator obtains a valid session for one (account, method) pair by
// driving a headless browser. Implementations never retry; retry policy
// belongs to the orchestrator. The browser context is an isolated chromedp
// context owned by the caller.
type Authenticator interface {
	Method() models.AuthMethod
	Authenticate(ctx context.Context) (*models.AuthResult, error)
}
