package usecase

import (
	"context"

	"github.com/mdblp/health-tracker/schema"
)

// SnapshotEvent is one delivery of a subscription: the complete ordered
// result set of the collection, or the read error that ended it
type SnapshotEvent struct {
	Documents []schema.Document
	Err       error
}

// DocumentDatabase is the hosted document store holding the user trees.
// Subscribe streams total snapshots until ctx is cancelled, then closes the channel.
type DocumentDatabase interface {
	Subscribe(ctx context.Context, scope schema.Scope, order schema.Order) (<-chan SnapshotEvent, error)
	QueryOnce(ctx context.Context, scope schema.Scope, order schema.Order) ([]schema.Document, error)
	Create(ctx context.Context, scope schema.Scope, fields map[string]interface{}) (string, error)
	Update(ctx context.Context, scope schema.Scope, id string, fields map[string]interface{}) error
	// Delete succeeds when the document does not exist
	Delete(ctx context.Context, scope schema.Scope, id string) error
	Ping(ctx context.Context) error
}

// IdentityProvider owns the sign-in state
type IdentityProvider interface {
	CurrentUser() *schema.User
	// Subscribe emits the current identity, then every change, until ctx is done
	Subscribe(ctx context.Context) <-chan *schema.User
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
}

// Downloader hands generated text to the user: browser attachment, file, archive bucket
type Downloader interface {
	Download(ctx context.Context, content []byte, filename string, mimeType string) error
}
