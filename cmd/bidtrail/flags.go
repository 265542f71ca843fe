package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/bidtrail/pkg/core"
)

// procurementRef identifies a procurement by id and title, or directly by key.
type procurementRef struct {
	id    string
	title string
	key   string
}

func (r *procurementRef) bind(cmd *cobra.Command, withKey bool) {
	cmd.Flags().StringVar(&r.id, "id", "", "Procurement ID")
	cmd.Flags().StringVar(&r.title, "title", "", "Procurement title")
	if withKey {
		cmd.Flags().StringVar(&r.key, "key", "", "Stream key (instead of --id/--title)")
	}
}

func (r *procurementRef) resolve() (string, error) {
	if r.key != "" {
		return r.key, nil
	}
	if r.id == "" {
		return "", fmt.Errorf("--id or --key is required")
	}
	return core.DeriveKey(r.id, r.title), nil
}

// documentFlags collects document metadata from --doc and --docs-file.
type documentFlags struct {
	docs []string
	file string
}

func (d *documentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&d.docs, "doc", nil,
		`Document metadata as comma-separated key=value pairs, e.g. "document_type=Bid Document,hash=9f2c,file_key=bids/a.pdf,file_size=1024" (repeatable)`)
	cmd.Flags().StringVar(&d.file, "docs-file", "", "YAML or JSON file holding a list of document metadata")
}

func (d *documentFlags) metadata() ([]core.Metadata, error) {
	var out []core.Metadata
	if d.file != "" {
		data, err := os.ReadFile(d.file)
		if err != nil {
			return nil, err
		}
		// YAML is a superset of JSON.
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("invalid documents file %s: %w", d.file, err)
		}
	}
	for _, raw := range d.docs {
		m, err := parseDoc(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// parseDoc reads "k=v,k=v". file_size is parsed as an integer.
func parseDoc(raw string) (core.Metadata, error) {
	m := core.Metadata{}
	for _, pair := range strings.Split(raw, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --doc entry %q: expected key=value", pair)
		}
		v = strings.TrimSpace(v)
		if k == core.FieldFileSize {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid file_size %q: %w", v, err)
			}
			m[k] = n
			continue
		}
		m[k] = v
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("empty --doc entry")
	}
	return m, nil
}
