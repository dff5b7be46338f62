//go:build !windows

package winhttp

import (
	"context"

	frakt "github.com/nvm/fraktgo"
)

var errUnavailable = &frakt.Error{Kind: frakt.ErrInternal, Message: "the winhttp engine is only available on windows"}

// Adapter is a non-functional stand-in on non-windows platforms so the
// package and its exported types remain referenceable from
// platform-independent engine-selection code.
type Adapter struct{}

var _ frakt.Engine = (*Adapter)(nil)

// New returns a stub Adapter; every method fails with ErrInternal.
func New(session *frakt.Session) *Adapter { return &Adapter{} }

// Kind reports EngineKindWinHTTP.
func (a *Adapter) Kind() frakt.EngineKind { return frakt.EngineKindWinHTTP }

// Execute always fails on non-windows platforms.
func (a *Adapter) Execute(ctx context.Context, req *frakt.Request) (*frakt.Response, error) {
	return nil, errUnavailable
}

// ExecuteBackgroundDownload always fails on non-windows platforms.
func (a *Adapter) ExecuteBackgroundDownload(ctx context.Context, req *frakt.DownloadRequest) (*frakt.DownloadResponse, error) {
	return nil, errUnavailable
}

// WebSocketConnect always fails on non-windows platforms.
func (a *Adapter) WebSocketConnect(ctx context.Context, rawURL string, opts frakt.WebSocketOptions) (frakt.WebSocket, error) {
	return nil, errUnavailable
}
