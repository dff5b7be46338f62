//go:build !darwin

package foundation

import (
	"context"

	frakt "github.com/nvm/fraktgo"
)

// errUnavailable is returned by every Adapter method on platforms other
// than darwin, where NSURLSession/CFNetwork do not exist.
var errUnavailable = &frakt.Error{Kind: frakt.ErrInternal, Message: "the foundation engine is only available on darwin"}

// Adapter is a non-functional stand-in for the darwin Foundation adapter,
// compiled on every other platform so callers can reference
// foundation.New and foundation.Adapter unconditionally.
type Adapter struct{}

var _ frakt.Engine = (*Adapter)(nil)

// New returns an Adapter whose methods all fail with errUnavailable.
func New(session *frakt.Session) *Adapter { return &Adapter{} }

// Kind reports EngineKindFoundation even though this build cannot execute
// requests, so EngineKind selection logic stays platform-independent.
func (a *Adapter) Kind() frakt.EngineKind { return frakt.EngineKindFoundation }

func (a *Adapter) Execute(ctx context.Context, req *frakt.Request) (*frakt.Response, error) {
	return nil, errUnavailable
}

func (a *Adapter) ExecuteBackgroundDownload(ctx context.Context, req *frakt.DownloadRequest) (*frakt.DownloadResponse, error) {
	return nil, errUnavailable
}

func (a *Adapter) WebSocketConnect(ctx context.Context, rawURL string, opts frakt.WebSocketOptions) (frakt.WebSocket, error) {
	return nil, errUnavailable
}
