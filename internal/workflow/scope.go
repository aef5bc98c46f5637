package workflow

import (
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JaimeStill/qtgreview/pkg/files"
)

// Scope selects one device/year/set partition. The zero Scope is the
// flat layout with areas directly under the root.
type Scope struct {
	Device string `json:"device,omitempty"`
	Year   string `json:"year,omitempty"`
	Set    string `json:"set,omitempty"`
}

// ScopeFromQuery reads device, year and set from URL values.
func ScopeFromQuery(values url.Values) Scope {
	return Scope{
		Device: strings.TrimSpace(values.Get("device")),
		Year:   strings.TrimSpace(values.Get("year")),
		Set:    strings.TrimSpace(values.Get("set")),
	}
}

// IsZero reports whether no scope value is set.
func (s Scope) IsZero() bool {
	return s == Scope{}
}

// Key returns the scope's canonical name, "device/year/set", or "" for
// the zero Scope.
func (s Scope) Key() string {
	if s.IsZero() {
		return ""
	}
	return s.Device + "/" + s.Year + "/" + s.Set
}

// Dir returns the scope's directory under root.
func (s Scope) Dir(root string) string {
	if s.IsZero() {
		return root
	}
	return filepath.Join(root, s.Device, s.Year, s.Set)
}

// Query encodes the scope as URL values, omitting empty fields.
func (s Scope) Query() url.Values {
	v := url.Values{}
	for k, val := range map[string]string{"device": s.Device, "year": s.Year, "set": s.Set} {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// Catalog lists the values allowed in each scope field.
type Catalog struct {
	Devices []string `json:"devices" toml:"devices"`
	Years   []string `json:"years" toml:"years"`
	Sets    []string `json:"sets" toml:"sets"`
}

// DefaultCatalog returns the stock device, year and set options.
func DefaultCatalog() Catalog {
	return Catalog{
		Devices: []string{"FFS", "FTD"},
		Years:   []string{"2023", "2024"},
		Sets:    []string{"Set A", "Set B", "Set C", "Set D"},
	}
}

// Validate checks that every catalog value is a usable directory name.
func (c Catalog) Validate() error {
	for field, values := range map[string][]string{"devices": c.Devices, "years": c.Years, "sets": c.Sets} {
		if len(values) == 0 {
			return validation("catalog %s must not be empty", field)
		}
		for _, v := range values {
			if files.ValidateName(v) != nil {
				return validation("catalog %s value %q is not a valid directory name", field, v)
			}
		}
	}
	return nil
}

// Contains reports whether every field of s is a catalog member.
func (c Catalog) Contains(s Scope) bool {
	return slices.Contains(c.Devices, s.Device) &&
		slices.Contains(c.Years, s.Year) &&
		slices.Contains(c.Sets, s.Set)
}

// resolve validates s against the mode and returns its directory.
func (st Settings) resolve(s Scope) (string, error) {
	if !st.Scoped {
		if !s.IsZero() {
			return "", validation("scope %q given but the workflow is not scoped", s.Key())
		}
		return st.Root, nil
	}

	switch {
	case s.Device == "", s.Year == "", s.Set == "":
		return "", validation("device, year and set are required")
	case !st.Catalog.Contains(s):
		return "", validation("scope %q is not in the catalog", s.Key())
	}
	for _, seg := range []string{s.Device, s.Year, s.Set} {
		if files.ValidateName(seg) != nil {
			return "", validation("scope segment %q is not a valid directory name", seg)
		}
	}
	return s.Dir(st.Root), nil
}
