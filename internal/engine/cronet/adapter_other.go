//go:build !android

package cronet

import (
	"context"

	frakt "github.com/nvm/fraktgo"
)

var errUnavailable = &frakt.Error{Kind: frakt.ErrInternal, Message: "the cronet engine is only available on android"}

// Adapter is a non-functional stand-in for the android Cronet adapter,
// compiled on every other platform so callers can reference cronet.New
// and cronet.Adapter unconditionally.
type Adapter struct{}

var _ frakt.Engine = (*Adapter)(nil)

// New returns an Adapter whose methods all fail with errUnavailable. The
// engine/executor handles are accepted but unused on this build.
func New(session *frakt.Session, engine, executor uintptr) (*Adapter, error) {
	return &Adapter{}, nil
}

// Kind reports EngineKindCronet even though this build cannot execute
// requests, so EngineKind selection logic stays platform-independent.
func (a *Adapter) Kind() frakt.EngineKind { return frakt.EngineKindCronet }

func (a *Adapter) Execute(ctx context.Context, req *frakt.Request) (*frakt.Response, error) {
	return nil, errUnavailable
}

func (a *Adapter) ExecuteBackgroundDownload(ctx context.Context, req *frakt.DownloadRequest) (*frakt.DownloadResponse, error) {
	return nil, errUnavailable
}

func (a *Adapter) WebSocketConnect(ctx context.Context, rawURL string, opts frakt.WebSocketOptions) (frakt.WebSocket, error) {
	return nil, errUnavailable
}
