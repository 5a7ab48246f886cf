// Package fsknowledge mirrors the Knowledge Repository's relational store
// onto the versioned markdown layout spec §6.2 describes:
// {layer}/{unit}/{type}/{id}.md with YAML frontmatter, plus a root
// manifest.json index. It decorates a knowledge.ItemStore rather than
// replacing it — the relational store stays authoritative for Get/List;
// the filesystem tree exists for humans and external tooling (diffing,
// grep, a static site) to read the same items aeterna itself reads from SQL.
package fsknowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
)

// Mirror wraps a knowledge.ItemStore, writing a markdown+frontmatter file
// and regenerating manifest.json after every successful Insert/Update.
// Get/List pass straight through; the mirror never becomes a read path, so
// a filesystem write failure never blocks a caller from seeing its own
// write reflected in the relational store.
type Mirror struct {
	inner    knowledge.ItemStore
	root     string
	tenantID string
	log      *zap.Logger
}

// New wraps inner. tenantID scopes manifest regeneration the same way
// internal/storage/commitstore.Store is scoped to one tenant per process
// (spec §9 "Global mutable state -> per-tenant context objects").
func New(inner knowledge.ItemStore, root, tenantID string, log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{inner: inner, root: root, tenantID: tenantID, log: log}
}

var _ knowledge.ItemStore = (*Mirror)(nil)

func (m *Mirror) Insert(ctx context.Context, item *knowledge.Item) error {
	if err := m.inner.Insert(ctx, item); err != nil {
		return err
	}
	m.mirror(ctx, item)
	return nil
}

func (m *Mirror) Update(ctx context.Context, item *knowledge.Item) error {
	if err := m.inner.Update(ctx, item); err != nil {
		return err
	}
	m.mirror(ctx, item)
	return nil
}

func (m *Mirror) Get(ctx context.Context, tenantID, id string) (*knowledge.Item, error) {
	return m.inner.Get(ctx, tenantID, id)
}

func (m *Mirror) List(ctx context.Context, tenantID string) ([]*knowledge.Item, error) {
	return m.inner.List(ctx, tenantID)
}

// mirror writes item's markdown file and regenerates manifest.json. Errors
// are logged, not returned: the mirror is a derived, rebuildable view and
// must never make an otherwise-successful write fail (spec §9 "Silent
// optimization vs visible feature" generalized to "derived view vs
// source of truth").
func (m *Mirror) mirror(ctx context.Context, item *knowledge.Item) {
	if m.root == "" {
		return
	}
	if err := m.writeItemFile(item); err != nil {
		m.log.Warn("fsknowledge: write item file failed", zap.String("id", item.ID), zap.Error(err))
		return
	}
	if err := m.regenerateManifest(ctx); err != nil {
		m.log.Warn("fsknowledge: regenerate manifest failed", zap.Error(err))
	}
}

// frontmatter is the YAML block at the top of every item's .md file,
// carrying every structured field (spec §6.2); Content is the markdown
// body that follows the closing "---".
type frontmatter struct {
	ID           string                 `yaml:"id"`
	TenantID     string                 `yaml:"tenant_id"`
	Type         string                 `yaml:"type"`
	Layer        string                 `yaml:"layer"`
	Title        string                 `yaml:"title"`
	Summary      string                 `yaml:"summary,omitempty"`
	ContentHash  string                 `yaml:"content_hash"`
	Status       string                 `yaml:"status"`
	Severity     string                 `yaml:"severity,omitempty"`
	Constraints  []knowledge.Constraint `yaml:"constraints,omitempty"`
	Tags         []string               `yaml:"tags,omitempty"`
	Metadata     map[string]any         `yaml:"metadata,omitempty"`
	Version      int                    `yaml:"version"`
	Supersedes   string                 `yaml:"supersedes,omitempty"`
	SupersededBy string                 `yaml:"superseded_by,omitempty"`
	CreatedAt    time.Time              `yaml:"created_at"`
	UpdatedAt    time.Time              `yaml:"updated_at"`
}

// itemPath computes {root}/{layer}/{tenant}/{type}/{id}.md. The spec names
// the second path segment "unit"; Item (spec §3.3) carries no unit_id
// field, only tenant_id, so tenant_id fills that segment — the closest
// organizational key actually on the type (documented in DESIGN.md).
func (m *Mirror) itemPath(item *knowledge.Item) string {
	return filepath.Join(m.root, string(item.Layer), item.TenantID, string(item.Type), item.ID+".md")
}

func (m *Mirror) writeItemFile(item *knowledge.Item) error {
	fm := frontmatter{
		ID: item.ID, TenantID: item.TenantID, Type: string(item.Type), Layer: string(item.Layer),
		Title: item.Title, Summary: item.Summary, ContentHash: item.ContentHash,
		Status: string(item.Status), Severity: string(item.Severity), Constraints: item.Constraints,
		Tags: item.Tags, Metadata: item.Metadata, Version: item.Version,
		Supersedes: item.Supersedes, SupersededBy: item.SupersededBy,
		CreatedAt: item.CreatedAt, UpdatedAt: item.UpdatedAt,
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("fsknowledge: marshal frontmatter: %w", err)
	}

	path := m.itemPath(item)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("fsknowledge: mkdir: %w", err)
	}
	body := "---\n" + string(header) + "---\n\n" + item.Content + "\n"
	return os.WriteFile(path, []byte(body), 0o644)
}

// manifestEntry is one row of manifest.json's index.
type manifestEntry struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Type        string    `json:"type"`
	Layer       string    `json:"layer"`
	Status      string    `json:"status"`
	Version     int       `json:"version"`
	Path        string    `json:"path"`
	ContentHash string    `json:"content_hash"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// manifestDoc is manifest.json's root shape: the index spec §6.2 names.
type manifestDoc struct {
	GeneratedAt time.Time       `json:"generated_at"`
	TenantID    string          `json:"tenant_id"`
	Items       []manifestEntry `json:"items"`
}

// regenerateManifest rewrites manifest.json from the current relational
// state (the index is fully derivable, so it is rebuilt wholesale rather
// than patched incrementally) and, alongside it, a manifest.yaml rendering
// of the same document via sigs.k8s.io/yaml — a plain JSONToYAML conversion
// over the json-tagged manifestDoc, distinct from the hand-written
// yaml-tagged frontmatter struct above, for reviewers who'd rather scan a
// YAML index than JSON.
func (m *Mirror) regenerateManifest(ctx context.Context) error {
	items, err := m.inner.List(ctx, m.tenantID)
	if err != nil {
		return fmt.Errorf("fsknowledge: list items: %w", err)
	}

	doc := manifestDoc{GeneratedAt: time.Now(), TenantID: m.tenantID, Items: make([]manifestEntry, 0, len(items))}
	for _, item := range items {
		doc.Items = append(doc.Items, manifestEntry{
			ID: item.ID, TenantID: item.TenantID, Type: string(item.Type), Layer: string(item.Layer),
			Status: string(item.Status), Version: item.Version,
			Path: m.itemPath(item), ContentHash: item.ContentHash, UpdatedAt: item.UpdatedAt,
		})
	}

	jsonBytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("fsknowledge: marshal manifest.json: %w", err)
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return fmt.Errorf("fsknowledge: mkdir root: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.root, "manifest.json"), jsonBytes, 0o644); err != nil {
		return fmt.Errorf("fsknowledge: write manifest.json: %w", err)
	}

	yamlBytes, err := sigsyaml.JSONToYAML(jsonBytes)
	if err != nil {
		return fmt.Errorf("fsknowledge: convert manifest to yaml: %w", err)
	}
	return os.WriteFile(filepath.Join(m.root, "manifest.yaml"), yamlBytes, 0o644)
}
