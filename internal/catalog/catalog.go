package catalog

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"fungiwatch/internal/logger"
)

// Species maps a human-readable name to the remote taxon identifier.
type Species struct {
	Name    string
	TaxonID int64
}

// Catalog manages the tracked-species list, one "name,taxon_id" line per
// species in a plain text file.
type Catalog struct {
	path string
	log  *logger.Logger
}

// New returns a catalog backed by the given file. The file does not have to
// exist yet; an empty catalog is valid.
func New(path string) *Catalog {
	return &Catalog{
		path: path,
		log:  logger.GetGlobalLogger().WithComponent("catalog"),
	}
}

// Load reads the species list, sorted by name. Malformed lines are logged
// and skipped.
func (c *Catalog) Load() ([]Species, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read species file %s: %w", c.path, err)
	}

	var species []Species
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, idStr, found := strings.Cut(line, ",")
		if !found {
			c.log.Warn("skipping malformed species line", logger.Fields{"line": line})
			continue
		}
		taxonID, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			c.log.Warn("skipping species line with bad taxon id", logger.Fields{"line": line})
			continue
		}
		species = append(species, Species{Name: strings.TrimSpace(name), TaxonID: taxonID})
	}

	sort.Slice(species, func(i, j int) bool { return species[i].Name < species[j].Name })
	return species, nil
}

// Save writes the full species list back, sorted by name.
func (c *Catalog) Save(species []Species) error {
	sorted := make([]Species, len(species))
	copy(sorted, species)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var sb strings.Builder
	for _, sp := range sorted {
		fmt.Fprintf(&sb, "%s,%d\n", sp.Name, sp.TaxonID)
	}
	if err := os.WriteFile(c.path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write species file %s: %w", c.path, err)
	}
	return nil
}

// Add appends a species; adding a name that already exists is an error.
func (c *Catalog) Add(name string, taxonID int64) error {
	species, err := c.Load()
	if err != nil {
		return err
	}
	for _, sp := range species {
		if sp.Name == name {
			return fmt.Errorf("species %q is already tracked", name)
		}
	}
	return c.Save(append(species, Species{Name: name, TaxonID: taxonID}))
}

// Update renames a species and/or re-points it at a different taxon. The old
// entry is returned so callers can migrate per-taxon state.
func (c *Catalog) Update(name, newName string, newTaxonID int64) (Species, error) {
	species, err := c.Load()
	if err != nil {
		return Species{}, err
	}
	for i, sp := range species {
		if sp.Name != name {
			continue
		}
		if newName != name {
			for _, other := range species {
				if other.Name == newName {
					return Species{}, fmt.Errorf("species %q is already tracked", newName)
				}
			}
		}
		species[i] = Species{Name: newName, TaxonID: newTaxonID}
		return sp, c.Save(species)
	}
	return Species{}, fmt.Errorf("species %q is not tracked", name)
}

// Remove drops a species by name; removing an unknown name is an error.
func (c *Catalog) Remove(name string) (Species, error) {
	species, err := c.Load()
	if err != nil {
		return Species{}, err
	}
	for i, sp := range species {
		if sp.Name == name {
			return sp, c.Save(append(species[:i], species[i+1:]...))
		}
	}
	return Species{}, fmt.Errorf("species %q is not tracked", name)
}

// Lookup finds a species by name.
func (c *Catalog) Lookup(name string) (Species, bool, error) {
	species, err := c.Load()
	if err != nil {
		return Species{}, false, err
	}
	for _, sp := range species {
		if sp.Name == name {
			return sp, true, nil
		}
	}
	return Species{}, false, nil
}
