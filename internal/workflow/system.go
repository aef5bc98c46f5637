package workflow

import (
	"context"
	"io"

	"github.com/JaimeStill/qtgreview/internal/signlog"
	"github.com/JaimeStill/qtgreview/pkg/lifecycle"
	"github.com/JaimeStill/qtgreview/pkg/pagination"
)

// System defines the public contract for workflow operations.
type System interface {
	Handler(maxUploadSize int64, page pagination.Config) *Handler
	Start(lc *lifecycle.Coordinator) error

	Scopes() ScopeInfo
	Bootstrap(ctx context.Context, scope Scope) error

	Classify(ctx context.Context, scope Scope, name string, decision Decision) (Document, error)
	Retrieve(ctx context.Context, scope Scope, name string, from Area) (Document, error)
	RetrieveBatch(ctx context.Context, scope Scope, names []string, from Area) (BatchResult, error)
	Sign(ctx context.Context, cmd SignCommand) (SignResult, error)

	List(ctx context.Context, scope Scope, area Area) ([]Document, error)
	Open(ctx context.Context, scope Scope, area Area, name string) (io.ReadCloser, Document, error)
	Entries(ctx context.Context, scope Scope) ([]signlog.Entry, error)
	Entry(ctx context.Context, scope Scope, document string) (signlog.Entry, error)
	Overview(ctx context.Context, scope Scope) (Overview, error)
}
