package config

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// MountInfo describes one auth mount, as listed by the platform's
// sys/auth endpoint.
type MountInfo struct {
	Accessor string `yaml:"accessor" json:"accessor"`
	Path     string `yaml:"path" json:"path"`
	Type     string `yaml:"type" json:"type"`
}

// EntityInfo is one row of an entity mapping table.
type EntityInfo struct {
	EntityID      string `yaml:"entity_id" json:"entity_id"`
	DisplayName   string `yaml:"display_name" json:"display_name"`
	MountPath     string `yaml:"mount_path" json:"mount_path"`
	MountAccessor string `yaml:"mount_accessor" json:"mount_accessor"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	LoginCount    int    `yaml:"login_count" json:"login_count"`
	FirstSeen     string `yaml:"first_seen" json:"first_seen"`
	LastSeen      string `yaml:"last_seen" json:"last_seen"`
}

// ErrEmptyTable is returned when a lookup file decodes but holds no usable rows.
var ErrEmptyTable = errors.New("lookup table is empty")

// ValidateMounts decodes a mount table. Three shapes are accepted (JSON is
// read through the YAML decoder):
//
//   - a list of {accessor, path, type}
//   - a map of mount path -> {accessor, type}, as returned by sys/auth
//   - either of the above wrapped in {"data": ...}
//
// Rows without an accessor are rejected.
func ValidateMounts(r io.Reader) ([]MountInfo, error) {
	root, err := decodeRoot(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mount table: %w", err)
	}

	var mounts []MountInfo
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&mounts); err != nil {
			return nil, fmt.Errorf("decode mount list: %w", err)
		}
	case yaml.MappingNode:
		var byPath map[string]MountInfo
		if err := root.Decode(&byPath); err != nil {
			return nil, fmt.Errorf("decode mount map: %w", err)
		}
		paths := make([]string, 0, len(byPath))
		for p := range byPath {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			m := byPath[p]
			if m.Path == "" {
				m.Path = p
			}
			mounts = append(mounts, m)
		}
	default:
		return nil, fmt.Errorf("mount table must be a list or a map")
	}

	if len(mounts) == 0 {
		return nil, ErrEmptyTable
	}
	for i := range mounts {
		m := &mounts[i]
		m.Accessor = strings.TrimSpace(m.Accessor)
		m.Path = strings.TrimSpace(m.Path)
		if m.Accessor == "" {
			return nil, fmt.Errorf("mount %d (%q) has no accessor", i, m.Path)
		}
	}
	return mounts, nil
}

// ValidateEntities decodes an entity mapping table: either a list of
// EntityInfo or a map of entity id -> EntityInfo, optionally wrapped in
// {"data": ...}.
func ValidateEntities(r io.Reader) ([]EntityInfo, error) {
	root, err := decodeRoot(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode entity table: %w", err)
	}

	var entities []EntityInfo
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&entities); err != nil {
			return nil, fmt.Errorf("decode entity list: %w", err)
		}
	case yaml.MappingNode:
		var byID map[string]EntityInfo
		if err := root.Decode(&byID); err != nil {
			return nil, fmt.Errorf("decode entity map: %w", err)
		}
		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			e := byID[id]
			if e.EntityID == "" {
				e.EntityID = id
			}
			entities = append(entities, e)
		}
	default:
		return nil, fmt.Errorf("entity table must be a list or a map")
	}

	if len(entities) == 0 {
		return nil, ErrEmptyTable
	}
	for i := range entities {
		if strings.TrimSpace(entities[i].EntityID) == "" {
			return nil, fmt.Errorf("entity %d (%q) has no entity_id", i, entities[i].DisplayName)
		}
	}
	return entities, nil
}

func decodeRoot(r io.Reader) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyTable
		}
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrEmptyTable
	}
	root := doc.Content[0]
	if root.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(root.Content); i += 2 {
			if root.Content[i].Value == "data" && len(root.Content) == 2 {
				return root.Content[i+1], nil
			}
		}
	}
	return root, nil
}
