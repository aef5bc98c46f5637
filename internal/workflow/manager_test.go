package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/qtgreview/internal/signlog"
	"github.com/JaimeStill/qtgreview/internal/workflow"
	"github.com/JaimeStill/qtgreview/pkg/lifecycle"
	"github.com/JaimeStill/qtgreview/pkg/stamp"
	"github.com/JaimeStill/qtgreview/pkg/stamp/stamptest"
)

func TestClassifyRetrieveRoundTrip(t *testing.T) {
	settings := flatSettings(t)
	sys := newSystem(t, settings, nil, nil)
	ctx := context.Background()

	original := stamptest.PDF(3)
	put(t, settings.Root, workflow.AreaIntake, "QTG 1.a.1.pdf", original)

	doc, err := sys.Classify(ctx, workflow.Scope{}, "QTG 1.a.1.pdf", workflow.DecisionFail)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if doc.Area != workflow.AreaRejected {
		t.Errorf("Area = %s, want rejected", doc.Area)
	}
	if exists(t, settings.Root, workflow.AreaIntake, "QTG 1.a.1.pdf") {
		t.Error("document still in intake after classify")
	}

	if _, err := sys.Retrieve(ctx, workflow.Scope{}, "QTG 1.a.1.pdf", workflow.AreaRejected); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if exists(t, settings.Root, workflow.AreaRejected, "QTG 1.a.1.pdf") {
		t.Error("document still in rejected after retrieve")
	}

	got, err := os.ReadFile(filepath.Join(settings.Root, "source_folder", "QTG 1.a.1.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, original) {
		t.Error("retrieved document differs from original")
	}
}

func TestClassifyPassMovesToApproved(t *testing.T) {
	settings := flatSettings(t)
	sys := newSystem(t, settings, nil, nil)
	put(t, settings.Root, workflow.AreaIntake, "spec_7.pdf", stamptest.PDF(1))

	if _, err := sys.Classify(context.Background(), workflow.Scope{}, "spec_7.pdf", "Pass"); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	for _, area := range workflow.Areas() {
		want := area == workflow.AreaApproved
		if got := exists(t, settings.Root, area, "spec_7.pdf"); got != want {
			t.Errorf("document in %s = %v, want %v", area, got, want)
		}
	}
}

func TestClassifyErrors(t *testing.T) {
	settings := flatSettings(t)
	sys := newSystem(t, settings, nil, nil)
	put(t, settings.Root, workflow.AreaIntake, "present.pdf", stamptest.PDF(1))

	tests := []struct {
		name     string
		scope    workflow.Scope
		document string
		decision workflow.Decision
		want     error
	}{
		{"missing document", workflow.Scope{}, "absent.pdf", workflow.DecisionPass, workflow.ErrNotFound},
		{"unknown decision", workflow.Scope{}, "present.pdf", "maybe", workflow.ErrValidation},
		{"traversal name", workflow.Scope{}, "../present.pdf", workflow.DecisionPass, workflow.ErrValidation},
		{"empty name", workflow.Scope{}, "", workflow.DecisionPass, workflow.ErrValidation},
		{"scope in flat mode", workflow.Scope{Device: "FFS", Year: "2024", Set: "Set A"}, "present.pdf", workflow.DecisionPass, workflow.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sys.Classify(context.Background(), tt.scope, tt.document, tt.decision)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Classify() error = %v, want %v", err, tt.want)
			}
		})
	}

	if !exists(t, settings.Root, workflow.AreaIntake, "present.pdf") {
		t.Error("failed classifications mutated intake")
	}
}

func TestRetrieveRejectsInvalidSource(t *testing.T) {
	settings := flatSettings(t)
	sys := newSystem(t, settings, nil, nil)

	for _, from := range []workflow.Area{workflow.AreaIntake, workflow.AreaArchived, "elsewhere"} {
		_, err := sys.Retrieve(context.Background(), workflow.Scope{}, "doc.pdf", from)
		if !errors.Is(err, workflow.ErrValidation) {
			t.Errorf("Retrieve(from %q) error = %v, want ErrValidation", from, err)
		}
	}
}

func TestRetrieveBatch(t *testing.T) {
	settings := flatSettings(t)
	sys := newSystem(t, settings, nil, nil)
	ctx := context.Background()

	put(t, settings.Root, workflow.AreaApproved, "a.pdf", stamptest.PDF(1))
	put(t, settings.Root, workflow.AreaApproved, "b.pdf", stamptest.PDF(1))

	result, err := sys.RetrieveBatch(ctx, workflow.Scope{}, []string{"a.pdf", "missing.pdf", "b.pdf"}, workflow.AreaApproved)
	if err != nil {
		t.Fatalf("RetrieveBatch() error = %v", err)
	}
	if len(result.Retrieved) != 2 {
		t.Errorf("retrieved %d, want 2", len(result.Retrieved))
	}
	if len(result.Failed) != 1 || result.Failed[0].Document != "missing.pdf" {
		t.Errorf("failed = %+v, want missing.pdf", result.Failed)
	}
	if !exists(t, settings.Root, workflow.AreaIntake, "a.pdf") || !exists(t, settings.Root, workflow.AreaIntake, "b.pdf") {
		t.Error("batch did not move documents to intake")
	}

	if _, err := sys.RetrieveBatch(ctx, workflow.Scope{}, nil, workflow.AreaApproved); !errors.Is(err, workflow.ErrValidation) {
		t.Errorf("empty batch error = %v, want ErrValidation", err)
	}
}

func signCommand(document string) workflow.SignCommand {
	return workflow.SignCommand{
		Document:  document,
		Signer:    "J. Smith",
		Signature: stamptest.PNG(300, 100),
		Remarks:   "OK",
	}
}

func TestSign(t *testing.T) {
	settings := flatSettings(t)
	mirror := newFakeMirror()
	sys := newSystem(t, settings, nil, mirror)
	ctx := context.Background()

	put(t, settings.Root, workflow.AreaApproved, "spec_7.pdf", stamptest.PDF(2))

	result, err := sys.Sign(ctx, signCommand("spec_7.pdf"))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if result.SignedAt != "2024-03-05 14:22:09" {
		t.Errorf("SignedAt = %q", result.SignedAt)
	}
	if !result.Created {
		t.Error("Created = false for first signing")
	}
	if result.ArchivedPath != "signed_folder/spec_7.pdf" {
		t.Errorf("ArchivedPath = %q", result.ArchivedPath)
	}
	if exists(t, settings.Root, workflow.AreaApproved, "spec_7.pdf") {
		t.Error("source still in approved after signing")
	}

	data, err := os.ReadFile(filepath.Join(settings.Root, "signed_folder", "spec_7.pdf"))
	if err != nil {
		t.Fatalf("archived file: %v", err)
	}
	if ok, err := api.HasWatermarks(bytes.NewReader(data), nil); err != nil || !ok {
		t.Errorf("HasWatermarks() = %v, %v; want stamped output", ok, err)
	}
	if pages, err := stamp.PageCount(bytes.NewReader(data)); err != nil || pages != 2 {
		t.Errorf("PageCount() = %d, %v; want 2", pages, err)
	}
	if _, ok := mirror.blobs["signed_folder/spec_7.pdf"]; !ok {
		t.Error("signed document not mirrored")
	}

	entries, err := sys.Entries(ctx, workflow.Scope{})
	if err != nil {
		t.Fatal(err)
	}
	want := signlog.Entry{DocumentName: "spec_7", SignerName: "J. Smith", SignedAt: "2024-03-05 14:22:09", Remarks: "OK"}
	if len(entries) != 1 || entries[0] != want {
		t.Errorf("Entries() = %+v, want [%+v]", entries, want)
	}
}

func TestSignAgainReplacesEntry(t *testing.T) {
	settings := flatSettings(t)
	sys := newSystem(t, settings, nil, nil)
	ctx := context.Background()

	for i, signer := range []string{"A. First", "B. Second"} {
		put(t, settings.Root, workflow.AreaApproved, "spec_7.pdf", stamptest.PDF(1))

		cmd := signCommand("spec_7.pdf")
		cmd.Signer = signer
		result, err := sys.Sign(ctx, cmd)
		if err != nil {
			t.Fatalf("Sign(%s) error = %v", signer, err)
		}
		if result.Created != (i == 0) {
			t.Errorf("Sign(%s) Created = %v", signer, result.Created)
		}
	}

	entries, err := sys.Entries(ctx, workflow.Scope{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].SignerName != "B. Second" {
		t.Errorf("Entries() = %+v, want one entry by B. Second", entries)
	}
}

func TestSignValidation(t *testing.T) {
	settings := flatSettings(t)
	settings.PIN = "4321"
	sys := newSystem(t, settings, nil, nil)

	tests := []struct {
		name   string
		modify func(*workflow.SignCommand)
		want   error
	}{
		{"empty signer", func(c *workflow.SignCommand) { c.Signer = "   " }, workflow.ErrValidation},
		{"missing signature", func(c *workflow.SignCommand) { c.Signature = nil }, workflow.ErrValidation},
		{"signature not an image", func(c *workflow.SignCommand) { c.Signature = []byte("GIF89a") }, workflow.ErrValidation},
		{"wrong pin", func(c *workflow.SignCommand) { c.PIN = "0000" }, workflow.ErrInvalidPIN},
		{"unsafe name", func(c *workflow.SignCommand) { c.Document = "../spec_7.pdf" }, workflow.ErrValidation},
		{"missing document", func(c *workflow.SignCommand) { c.Document = "absent.pdf" }, workflow.ErrNotFound},
	}

	put(t, settings.Root, workflow.AreaApproved, "spec_7.pdf", stamptest.PDF(1))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := signCommand("spec_7.pdf")
			cmd.PIN = "4321"
			tt.modify(&cmd)

			if _, err := sys.Sign(context.Background(), cmd); !errors.Is(err, tt.want) {
				t.Fatalf("Sign() error = %v, want %v", err, tt.want)
			}
		})
	}

	if !exists(t, settings.Root, workflow.AreaApproved, "spec_7.pdf") {
		t.Error("rejected signing removed the approved document")
	}
	if exists(t, settings.Root, workflow.AreaArchived, "spec_7.pdf") {
		t.Error("rejected signing archived the document")
	}
	entries, _ := sys.Entries(context.Background(), workflow.Scope{})
	if len(entries) != 0 {
		t.Errorf("rejected signing wrote log entries: %+v", entries)
	}
}

func TestSignLogFailureRollsBack(t *testing.T) {
	t.Run("new archive file removed", func(t *testing.T) {
		settings := flatSettings(t)
		mirror := newFakeMirror()
		sys := newSystem(t, settings, failingLog{err: errors.New("disk full")}, mirror)

		original := stamptest.PDF(1)
		put(t, settings.Root, workflow.AreaApproved, "spec_7.pdf", original)

		_, err := sys.Sign(context.Background(), signCommand("spec_7.pdf"))
		if !errors.Is(err, workflow.ErrLogUpdate) {
			t.Fatalf("Sign() error = %v, want ErrLogUpdate", err)
		}

		if exists(t, settings.Root, workflow.AreaArchived, "spec_7.pdf") {
			t.Error("archived file left behind")
		}
		got, err := os.ReadFile(filepath.Join(settings.Root, "pass_folder", "spec_7.pdf"))
		if err != nil || !bytes.Equal(got, original) {
			t.Errorf("approved document changed: %v", err)
		}
		if !slices.Contains(mirror.deleted, "signed_folder/spec_7.pdf") {
			t.Errorf("mirror deletes = %v, want compensation", mirror.deleted)
		}
	})

	t.Run("previous archive file restored", func(t *testing.T) {
		settings := flatSettings(t)
		sys := newSystem(t, settings, failingLog{err: errors.New("locked")}, nil)

		previous := []byte("%PDF-1.4 previously signed")
		put(t, settings.Root, workflow.AreaArchived, "spec_7.pdf", previous)
		put(t, settings.Root, workflow.AreaApproved, "spec_7.pdf", stamptest.PDF(1))

		if _, err := sys.Sign(context.Background(), signCommand("spec_7.pdf")); !errors.Is(err, workflow.ErrLogUpdate) {
			t.Fatalf("Sign() error = %v, want ErrLogUpdate", err)
		}

		got, err := os.ReadFile(filepath.Join(settings.Root, "signed_folder", "spec_7.pdf"))
		if err != nil || !bytes.Equal(got, previous) {
			t.Errorf("archived file not restored: %q, %v", got, err)
		}
	})
}

func TestSignMirrorFailure(t *testing.T) {
	settings := flatSettings(t)
	mirror := newFakeMirror()
	mirror.uploadErr = errors.New("connection reset")
	sys := newSystem(t, settings, nil, mirror)

	put(t, settings.Root, workflow.AreaApproved, "spec_7.pdf", stamptest.PDF(1))

	if _, err := sys.Sign(context.Background(), signCommand("spec_7.pdf")); !errors.Is(err, workflow.ErrIO) {
		t.Fatalf("Sign() error = %v, want ErrIO", err)
	}
	if exists(t, settings.Root, workflow.AreaArchived, "spec_7.pdf") {
		t.Error("archived file left behind")
	}
	if !exists(t, settings.Root, workflow.AreaApproved, "spec_7.pdf") {
		t.Error("approved document removed")
	}
}

func TestScopedMode(t *testing.T) {
	settings := flatSettings(t)
	settings.Scoped = true
	settings.Catalog = workflow.DefaultCatalog()
	sys := newSystem(t, settings, nil, nil)
	ctx := context.Background()

	scope := workflow.Scope{Device: "FFS", Year: "2024", Set: "Set A"}
	dir := scope.Dir(settings.Root)
	put(t, dir, workflow.AreaIntake, "spec_7.pdf", stamptest.PDF(1))

	if _, err := sys.Classify(ctx, scope, "spec_7.pdf", workflow.DecisionPass); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !exists(t, dir, workflow.AreaApproved, "spec_7.pdf") {
		t.Error("document not in scoped approved folder")
	}
	if _, err := os.Stat(filepath.Join(dir, signlog.CSVFile)); err != nil {
		t.Errorf("scope log not bootstrapped: %v", err)
	}

	invalid := []workflow.Scope{
		{},
		{Device: "FFS", Year: "2024"},
		{Device: "FFS", Year: "1999", Set: "Set A"},
		{Device: "..", Year: "2024", Set: "Set A"},
	}
	for _, s := range invalid {
		if _, err := sys.List(ctx, s, workflow.AreaIntake); !errors.Is(err, workflow.ErrValidation) {
			t.Errorf("List(%+v) error = %v, want ErrValidation", s, err)
		}
	}

	info := sys.Scopes()
	if !info.Scoped || len(info.Catalog.Sets) != 4 {
		t.Errorf("Scopes() = %+v", info)
	}
}

func TestListOpenOverview(t *testing.T) {
	settings := flatSettings(t)
	sys := newSystem(t, settings, nil, nil)
	ctx := context.Background()

	put(t, settings.Root, workflow.AreaIntake, "b.pdf", []byte("b"))
	put(t, settings.Root, workflow.AreaIntake, "a.pdf", []byte("aa"))
	put(t, settings.Root, workflow.AreaIntake, ".a.1234.pdf", []byte("temp"))
	put(t, settings.Root, workflow.AreaArchived, "c.pdf", []byte("c"))

	docs, err := sys.List(ctx, workflow.Scope{}, workflow.AreaIntake)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 || docs[0].Name != "a.pdf" || docs[1].Name != "b.pdf" {
		t.Errorf("List() = %+v, want a.pdf, b.pdf", docs)
	}
	if docs[0].SizeBytes != 2 {
		t.Errorf("SizeBytes = %d, want 2", docs[0].SizeBytes)
	}

	rc, doc, err := sys.Open(ctx, workflow.Scope{}, workflow.AreaArchived, "c.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "c" || doc.Area != workflow.AreaArchived {
		t.Errorf("Open() = %q, %+v", data, doc)
	}
	if _, _, err := sys.Open(ctx, workflow.Scope{}, workflow.AreaArchived, "a.pdf"); !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("Open(missing) error = %v, want ErrNotFound", err)
	}

	overview, err := sys.Overview(ctx, workflow.Scope{})
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	want := map[workflow.Area]int{
		workflow.AreaIntake:   2,
		workflow.AreaApproved: 0,
		workflow.AreaRejected: 0,
		workflow.AreaArchived: 1,
	}
	for area, n := range want {
		if overview.Counts[area] != n {
			t.Errorf("Counts[%s] = %d, want %d", area, overview.Counts[area], n)
		}
	}
}

func TestStartBootstrapsFlatRoot(t *testing.T) {
	settings := flatSettings(t)
	sys := newSystem(t, settings, nil, nil)

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatal(err)
	}
	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("WaitForStartup() error = %v", err)
	}

	for _, area := range workflow.Areas() {
		if _, err := os.Stat(filepath.Join(settings.Root, area.Folder())); err != nil {
			t.Errorf("%s not created: %v", area.Folder(), err)
		}
	}
	if _, err := os.Stat(filepath.Join(settings.Root, signlog.CSVFile)); err != nil {
		t.Errorf("log not created: %v", err)
	}
}

func TestParseArea(t *testing.T) {
	tests := map[string]workflow.Area{
		"intake":        workflow.AreaIntake,
		"pass_folder":   workflow.AreaApproved,
		"Rejected":      workflow.AreaRejected,
		"signed_folder": workflow.AreaArchived,
	}
	for in, want := range tests {
		got, err := workflow.ParseArea(in)
		if err != nil || got != want {
			t.Errorf("ParseArea(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := workflow.ParseArea("trash"); !errors.Is(err, workflow.ErrValidation) {
		t.Errorf("ParseArea(trash) error = %v, want ErrValidation", err)
	}
}

func TestSignRejectsUnreadablePDF(t *testing.T) {
	settings := flatSettings(t)
	sys := newSystem(t, settings, nil, nil)

	put(t, settings.Root, workflow.AreaApproved, "spec_7.pdf", []byte("not a pdf"))

	if _, err := sys.Sign(context.Background(), signCommand("spec_7.pdf")); !errors.Is(err, workflow.ErrValidation) {
		t.Fatalf("Sign() error = %v, want ErrValidation", err)
	}
	if !exists(t, settings.Root, workflow.AreaApproved, "spec_7.pdf") {
		t.Error("approved document removed")
	}
	if exists(t, settings.Root, workflow.AreaArchived, "spec_7.pdf") {
		t.Error("unreadable document archived")
	}
}

func TestEntry(t *testing.T) {
	settings := flatSettings(t)
	sys := newSystem(t, settings, nil, nil)
	ctx := context.Background()

	put(t, settings.Root, workflow.AreaApproved, "spec_7.pdf", stamptest.PDF(1))
	if _, err := sys.Sign(ctx, signCommand("spec_7.pdf")); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"spec_7.pdf", "spec_7"} {
		e, err := sys.Entry(ctx, workflow.Scope{}, name)
		if err != nil {
			t.Fatalf("Entry(%s) error = %v", name, err)
		}
		if e.SignerName != "J. Smith" || e.Remarks != "OK" {
			t.Errorf("Entry(%s) = %+v", name, e)
		}
	}

	if _, err := sys.Entry(ctx, workflow.Scope{}, "spec_8.pdf"); !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("unsigned error = %v, want ErrNotFound", err)
	}
	if _, err := sys.Entry(ctx, workflow.Scope{}, " "); !errors.Is(err, workflow.ErrValidation) {
		t.Errorf("empty name error = %v, want ErrValidation", err)
	}
}

func TestRetrieveWaitsForSign(t *testing.T) {
	settings := flatSettings(t)
	mirror := newBlockingMirror()
	sys := newSystem(t, settings, nil, mirror)
	ctx := context.Background()

	put(t, settings.Root, workflow.AreaApproved, "spec_7.pdf", stamptest.PDF(1))

	signErr := make(chan error, 1)
	go func() {
		_, err := sys.Sign(ctx, signCommand("spec_7.pdf"))
		signErr <- err
	}()
	<-mirror.uploading

	retrieveErr := make(chan error, 1)
	go func() {
		_, err := sys.Retrieve(ctx, workflow.Scope{}, "spec_7.pdf", workflow.AreaApproved)
		retrieveErr <- err
	}()

	select {
	case err := <-retrieveErr:
		t.Fatalf("Retrieve() returned during signing: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(mirror.release)

	if err := <-signErr; err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if err := <-retrieveErr; !errors.Is(err, workflow.ErrNotFound) {
		t.Errorf("Retrieve() error = %v, want ErrNotFound", err)
	}
	if exists(t, settings.Root, workflow.AreaIntake, "spec_7.pdf") {
		t.Error("signed document also returned to intake")
	}
	if !exists(t, settings.Root, workflow.AreaArchived, "spec_7.pdf") {
		t.Error("document not archived")
	}
}

func TestSignWarnsWhenSourceRemains(t *testing.T) {
	settings := flatSettings(t)
	mirror := newBlockingMirror()
	var logs bytes.Buffer
	sys := workflow.New(settings, signlog.CSVBackend{}, mirror, slog.New(slog.NewTextHandler(&logs, nil)))
	ctx := context.Background()

	src := put(t, settings.Root, workflow.AreaApproved, "spec_7.pdf", stamptest.PDF(1))

	signErr := make(chan error, 1)
	go func() {
		_, err := sys.Sign(ctx, signCommand("spec_7.pdf"))
		signErr <- err
	}()
	<-mirror.uploading

	// a non-empty directory in place of the source cannot be removed
	if err := os.Remove(src); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(src, "keep"), 0o755); err != nil {
		t.Fatal(err)
	}
	close(mirror.release)

	if err := <-signErr; !errors.Is(err, workflow.ErrIO) {
		t.Fatalf("Sign() error = %v, want ErrIO", err)
	}

	out := logs.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "signed document left in approved") {
		t.Errorf("log = %q, want warning", out)
	}
	if !strings.Contains(out, filepath.Join("pass_folder", "spec_7.pdf")) {
		t.Errorf("log = %q, want source path", out)
	}
}
