package api

import (
	"github.com/JaimeStill/qtgreview/internal/infrastructure"
	"github.com/JaimeStill/qtgreview/internal/workflow"
)

// Domain holds the domain systems served by the API. The workflow system
// is shared with the HTML form so both surfaces serialize signing through
// the same scope locks.
type Domain struct {
	Workflow workflow.System
}

// NewDomain creates the domain systems from the workflow settings and the
// shared infrastructure.
func NewDomain(settings workflow.Settings, infra *infrastructure.Infrastructure) *Domain {
	return &Domain{
		Workflow: workflow.New(settings, infra.SignLog, infra.Storage, infra.Logger),
	}
}
