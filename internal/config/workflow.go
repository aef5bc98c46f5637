package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JaimeStill/qtgreview/internal/signlog"
	"github.com/JaimeStill/qtgreview/internal/workflow"
)

const (
	EnvWorkflowRoot    = "QTG_WORKFLOW_ROOT"
	EnvWorkflowScoped  = "QTG_WORKFLOW_SCOPED"
	EnvWorkflowPIN     = "QTG_WORKFLOW_PIN"
	EnvWorkflowDevices = "QTG_WORKFLOW_DEVICES"
	EnvWorkflowYears   = "QTG_WORKFLOW_YEARS"
	EnvWorkflowSets    = "QTG_WORKFLOW_SETS"
	EnvLogFormat       = "QTG_LOG_FORMAT"
	EnvLogStrictMatch  = "QTG_LOG_STRICT_MATCH"
)

// WorkflowConfig holds the document root, scope layout, signing PIN and
// signing log settings.
type WorkflowConfig struct {
	Root    string           `toml:"root"`
	Scoped  *bool            `toml:"scoped"`
	PIN     string           `toml:"pin"`
	Catalog workflow.Catalog `toml:"catalog"`
	Log     LogConfig        `toml:"log"`
}

// LogConfig selects the signing log backend.
type LogConfig struct {
	Format      signlog.Format `toml:"format"`
	StrictMatch *bool          `toml:"strict_match"`
}

// Settings converts the config into workflow manager settings.
func (c *WorkflowConfig) Settings() workflow.Settings {
	return workflow.Settings{
		Root:    c.Root,
		Scoped:  c.IsScoped(),
		Catalog: c.Catalog,
		PIN:     c.PIN,
	}
}

// IsScoped reports whether documents are partitioned by device/year/set.
func (c *WorkflowConfig) IsScoped() bool {
	return c.Scoped != nil && *c.Scoped
}

// IsStrict reports whether the XLSX register rejects unregistered documents.
func (l *LogConfig) IsStrict() bool {
	return l.StrictMatch != nil && *l.StrictMatch
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *WorkflowConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites fields set in overlay.
func (c *WorkflowConfig) Merge(overlay *WorkflowConfig) {
	if overlay.Root != "" {
		c.Root = overlay.Root
	}
	if overlay.Scoped != nil {
		c.Scoped = overlay.Scoped
	}
	if overlay.PIN != "" {
		c.PIN = overlay.PIN
	}
	if overlay.Catalog.Devices != nil {
		c.Catalog.Devices = overlay.Catalog.Devices
	}
	if overlay.Catalog.Years != nil {
		c.Catalog.Years = overlay.Catalog.Years
	}
	if overlay.Catalog.Sets != nil {
		c.Catalog.Sets = overlay.Catalog.Sets
	}
	if overlay.Log.Format != "" {
		c.Log.Format = overlay.Log.Format
	}
	if overlay.Log.StrictMatch != nil {
		c.Log.StrictMatch = overlay.Log.StrictMatch
	}
}

func (c *WorkflowConfig) loadDefaults() {
	if c.Root == "" {
		c.Root = "qtg_documents"
	}
	if c.Scoped == nil {
		scoped := true
		c.Scoped = &scoped
	}
	defaults := workflow.DefaultCatalog()
	if len(c.Catalog.Devices) == 0 {
		c.Catalog.Devices = defaults.Devices
	}
	if len(c.Catalog.Years) == 0 {
		c.Catalog.Years = defaults.Years
	}
	if len(c.Catalog.Sets) == 0 {
		c.Catalog.Sets = defaults.Sets
	}
	if c.Log.Format == "" {
		c.Log.Format = signlog.FormatCSV
	}
}

func (c *WorkflowConfig) loadEnv() {
	if v := os.Getenv(EnvWorkflowRoot); v != "" {
		c.Root = v
	}
	if v := os.Getenv(EnvWorkflowScoped); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Scoped = &b
		}
	}
	if v := os.Getenv(EnvWorkflowPIN); v != "" {
		c.PIN = v
	}
	for key, dst := range map[string]*[]string{
		EnvWorkflowDevices: &c.Catalog.Devices,
		EnvWorkflowYears:   &c.Catalog.Years,
		EnvWorkflowSets:    &c.Catalog.Sets,
	} {
		if v := os.Getenv(key); v != "" {
			*dst = splitList(v)
		}
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = signlog.Format(strings.ToLower(v))
	}
	if v := os.Getenv(EnvLogStrictMatch); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Log.StrictMatch = &b
		}
	}
}

func (c *WorkflowConfig) validate() error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("invalid root %q: %w", c.Root, err)
	}
	c.Root = root

	if c.IsScoped() {
		if err := c.Catalog.Validate(); err != nil {
			return err
		}
	}

	switch c.Log.Format {
	case signlog.FormatCSV, signlog.FormatXLSX, signlog.FormatSQL:
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	if c.Log.IsStrict() && c.Log.Format != signlog.FormatXLSX {
		return fmt.Errorf("strict_match applies only to the xlsx log")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
