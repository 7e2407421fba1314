package enrich

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vaibhaw-/AuthChurn/internal/authchurn/config"
	"github.com/vaibhaw-/AuthChurn/internal/authchurn/logger"
)

// Lookups resolves opaque identifiers found in audit records to the names an
// operator recognizes. A nil *Lookups is valid and resolves nothing.
type Lookups struct {
	mounts   map[string]config.MountInfo
	entities map[string]config.EntityInfo
}

// LoadLookups reads the optional mount and entity tables named in cfg.
// Empty paths are skipped.
func LoadLookups(cfg config.LookupsCfg) (*Lookups, error) {
	l := &Lookups{}

	if cfg.MountsFile != "" {
		rows, err := readTable(cfg.MountsFile, config.ValidateMounts)
		if err != nil {
			return nil, fmt.Errorf("failed to load mount table: %w", err)
		}
		l.addMounts(rows)
		logger.L().Debugw("Loaded mount table", "path", cfg.MountsFile, "mounts", len(rows))
	}

	if cfg.EntitiesFile != "" {
		rows, err := readTable(cfg.EntitiesFile, config.ValidateEntities)
		if err != nil {
			return nil, fmt.Errorf("failed to load entity table: %w", err)
		}
		l.addEntities(rows)
		logger.L().Debugw("Loaded entity table", "path", cfg.EntitiesFile, "entities", len(rows))
	}

	return l, nil
}

// NewLookups builds lookups from already decoded rows.
func NewLookups(mounts []config.MountInfo, entities []config.EntityInfo) *Lookups {
	l := &Lookups{}
	l.addMounts(mounts)
	l.addEntities(entities)
	return l
}

func readTable[T any](path string, validate func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := validate(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func (l *Lookups) addMounts(rows []config.MountInfo) {
	if len(rows) == 0 {
		return
	}
	if l.mounts == nil {
		l.mounts = make(map[string]config.MountInfo, len(rows))
	}
	for _, m := range rows {
		l.mounts[m.Accessor] = m
	}
}

func (l *Lookups) addEntities(rows []config.EntityInfo) {
	if len(rows) == 0 {
		return
	}
	if l.entities == nil {
		l.entities = make(map[string]config.EntityInfo, len(rows))
	}
	for _, e := range rows {
		l.entities[e.EntityID] = e
	}
}

// MountLabel returns the human readable login path prefix for an accessor,
// normalized to the "auth/<path>" form used in request paths.
func (l *Lookups) MountLabel(accessor string) (string, bool) {
	if l == nil || accessor == "" {
		return "", false
	}
	m, ok := l.mounts[accessor]
	if !ok {
		return "", false
	}
	p := strings.Trim(m.Path, "/")
	if p == "" {
		return "", false
	}
	if !strings.HasPrefix(p, "auth/") {
		p = "auth/" + p
	}
	return p, true
}

// EntityName returns the entity's display name, or "" when unknown.
func (l *Lookups) EntityName(id string) string {
	if l == nil {
		return ""
	}
	return l.entities[id].DisplayName
}

// Len reports the number of mounts and entities loaded.
func (l *Lookups) Len() (mounts, entities int) {
	if l == nil {
		return 0, 0
	}
	return len(l.mounts), len(l.entities)
}
