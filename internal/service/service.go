// Package service holds the domain logic: credentials, the user
// directory, and the message/response state machine with its role and
// gender-scoped visibility rules.  Handlers call into *Service and map the
// returned *Error kinds onto HTTP statuses.
package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/iliyamo/peer-support/internal/contentstore"
	"github.com/iliyamo/peer-support/internal/metrics"
	"github.com/iliyamo/peer-support/internal/publisher"
	"github.com/iliyamo/peer-support/internal/queue"
	"github.com/iliyamo/peer-support/internal/repository"
)

// Content-store folders.
const (
	folderPhotos    = "profile-photos"
	folderMessages  = "messages"
	folderResponses = "responses"
)

// Deps are the collaborators shared by every component.  Events and
// Metrics may be nil.
type Deps struct {
	Store   repository.Store
	Content contentstore.Store
	Events  publisher.Publisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Options tune behaviour.  Zero values are usable except for the secrets.
type Options struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	BcryptCost    int
	StoreTimeout  time.Duration

	// StrictMessageStatus rejects direct status edits that contradict
	// the attached-response state.
	StrictMessageStatus bool
	// AdminSeesAllResponses makes an admin's response listing return
	// every response instead of only the admin's own.
	AdminSeesAllResponses bool
}

// Service bundles the domain components.
type Service struct {
	Credentials *Credentials
	Directory   *Directory
	Messaging   *Messaging
}

// New wires the components together.
func New(d Deps, o Options) *Service {
	if d.Events == nil {
		d.Events = publisher.Noop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = 5 * time.Second
	}
	if o.AccessTTL <= 0 {
		o.AccessTTL = 15 * time.Minute
	}
	if o.RefreshTTL <= 0 {
		o.RefreshTTL = 10 * 24 * time.Hour
	}
	b := &base{deps: d, timeout: o.StoreTimeout}
	return &Service{
		Credentials: &Credentials{base: b, opts: o},
		Directory:   &Directory{base: b, cost: o.BcryptCost},
		Messaging:   &Messaging{base: b, strict: o.StrictMessageStatus, adminAll: o.AdminSeesAllResponses},
	}
}

// Upload is a file handed to the service by the transport layer.  The
// caller owns Body and closes it after the call returns.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// base carries the shared plumbing.
type base struct {
	deps    Deps
	timeout time.Duration
}

func (b *base) store() repository.Store { return b.deps.Store }

func (b *base) log() *slog.Logger { return b.deps.Logger }

// bounded derives the per-call context for a store round-trip.
func (b *base) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

// put stores an upload.  Failures are ExternalDependency unless the
// request itself ran out of time.
func (b *base) put(ctx context.Context, folder string, up *Upload) (string, error) {
	if b.deps.Content == nil {
		return "", newErr(ExternalDependency, "file storage is not configured")
	}
	url, err := b.deps.Content.Put(ctx, folder, up.Name, up.Body, up.Size, up.ContentType)
	if err != nil {
		b.deps.Metrics.ContentStoreFailed("put")
		if ctx.Err() != nil {
			return "", wrapErr(Timeout, "file upload timed out", err)
		}
		return "", wrapErr(ExternalDependency, "file upload failed", err)
	}
	return url, nil
}

// discard deletes an object on a fresh context so cleanup still happens
// when the request context is what failed.  Errors are logged only.
func (b *base) discard(url string) {
	if url == "" || b.deps.Content == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.deps.Content.Delete(ctx, url); err != nil {
		b.deps.Metrics.ContentStoreFailed("delete")
		b.log().Warn("content delete failed", "url", url, "err", err)
	}
}

// emit publishes ev without letting broker trouble fail the request.
func (b *base) emit(ctx context.Context, ev queue.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := b.deps.Events.Publish(ctx, ev); err != nil {
		b.log().Warn("event publish failed", "type", ev.Type, "err", err)
	}
}
