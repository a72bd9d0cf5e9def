package core

import (
	"context"

	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// DocumentStore reads task documents and appends responses in place.
// This interface is defined locally in core to avoid importing integration.
type DocumentStore interface {
	Read(path string) (string, error)
	AppendResponse(path string, resp models.Response) error
}

// ResponseGenerator obtains generated text for a classified document.
// This interface is defined locally in core to avoid importing integration.
type ResponseGenerator interface {
	Generate(ctx context.Context, content string, label models.Classification) (string, error)
}

// DirSource streams the names of files created in a watched directory.
type DirSource interface {
	Names() <-chan string
	Errors() <-chan error
	Close() error
}

// SubscribeFunc opens a DirSource on dir.
type SubscribeFunc func(dir string) (DirSource, error)
