// Package workflow implements the QTG document review workflow.
// Documents move between four areas (intake, approved, rejected, archived)
// by atomic renames; signing stamps an approved PDF, archives it, and
// records the event in the signing log. Every operation runs within an
// optional device/year/set scope.
package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/JaimeStill/qtgreview/internal/signlog"
)

// Area is a workflow state, backed by one directory per scope.
type Area string

const (
	AreaIntake   Area = "intake"
	AreaApproved Area = "approved"
	AreaRejected Area = "rejected"
	AreaArchived Area = "archived"
)

var areaFolders = map[Area]string{
	AreaIntake:   "source_folder",
	AreaApproved: "pass_folder",
	AreaRejected: "fail_folder",
	AreaArchived: "signed_folder",
}

// Areas returns every area in lifecycle order.
func Areas() []Area {
	return []Area{AreaIntake, AreaApproved, AreaRejected, AreaArchived}
}

// Folder returns the directory name of the area.
func (a Area) Folder() string {
	return areaFolders[a]
}

// ParseArea accepts an area name or its folder name.
func ParseArea(s string) (Area, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, folder := range areaFolders {
		if s == string(a) || s == folder {
			return a, nil
		}
	}
	return "", validation("unknown area %q", s)
}

// Decision is the reviewer's verdict on an intake document.
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionFail Decision = "fail"
)

// ParseDecision accepts "pass" or "fail" in any case.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionPass, DecisionFail:
		return d, nil
	}
	return "", validation("unknown decision %q", s)
}

// Target returns the area a decision moves a document into.
func (d Decision) Target() Area {
	if d == DecisionPass {
		return AreaApproved
	}
	return AreaRejected
}

// Document is a file in one workflow area.
type Document struct {
	Name       string    `json:"name"`
	Area       Area      `json:"area"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// SignCommand carries a signing request. Signature holds the raw PNG or
// JPEG bytes and is only kept for the duration of the call.
type SignCommand struct {
	Scope     Scope
	Document  string
	Signer    string
	Signature []byte
	Remarks   string
	PIN       string
}

// SignResult reports a completed signing. ArchivedPath is relative to the
// workflow root.
type SignResult struct {
	Document     Document      `json:"document"`
	SignedAt     string        `json:"signed_at"`
	ArchivedPath string        `json:"archived_path"`
	Entry        signlog.Entry `json:"entry"`
	Created      bool          `json:"created"`
}

// BatchFailure describes one document a batch could not process.
type BatchFailure struct {
	Document string `json:"document"`
	Error    string `json:"error"`
}

// BatchResult reports a best-effort batch retrieve. Each document is
// attempted independently.
type BatchResult struct {
	Retrieved []Document     `json:"retrieved"`
	Failed    []BatchFailure `json:"failed"`
}

// Overview counts the documents in each area of a scope.
type Overview struct {
	Scope  Scope        `json:"scope"`
	Counts map[Area]int `json:"counts"`
}

// ScopeInfo describes how scopes are selected and whether signing asks
// for the shared PIN.
type ScopeInfo struct {
	Scoped      bool    `json:"scoped"`
	Catalog     Catalog `json:"catalog"`
	PINRequired bool    `json:"pin_required"`
}

// Settings configures the workflow manager.
type Settings struct {
	Root    string
	Scoped  bool
	Catalog Catalog
	// PIN gates signing with a shared code. Empty disables the gate.
	PIN string
	Now func() time.Time
}

func (s Settings) describe() string {
	if s.Scoped {
		return fmt.Sprintf("scoped (%d devices, %d years, %d sets)", len(s.Catalog.Devices), len(s.Catalog.Years), len(s.Catalog.Sets))
	}
	return "flat"
}
