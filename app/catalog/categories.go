package catalog

import (
	_ "embed"
	"fmt"
	"html"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yml
var defaultCategoriesYAML []byte

type Category struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
	Color string `yaml:"color" json:"color"`
	Icon  string `yaml:"icon" json:"icon"`
}

type categoryDefaults struct {
	Color string `yaml:"color"`
	Icon  string `yaml:"icon"`
}

type categoryFile struct {
	IconDir    string           `yaml:"icon_dir"`
	Default    categoryDefaults `yaml:"default"`
	Categories []Category       `yaml:"categories"`
}

// CategoryTable maps tags to display metadata. It is read-only after load.
type CategoryTable struct {
	iconDir  string
	fallback categoryDefaults
	ordered  []Category
	byKey    map[string]Category
}

func DefaultCategories() *CategoryTable {
	table, err := ParseCategories(defaultCategoriesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded category table is invalid: %v", err))
	}
	return table
}

// LoadCategories reads a YAML table from path, or the embedded table when
// path is empty.
func LoadCategories(path string) (*CategoryTable, error) {
	if path == "" {
		return DefaultCategories(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	table, err := ParseCategories(data)
	if err != nil {
		return nil, fmt.Errorf("invalid category table %s: %w", path, err)
	}
	return table, nil
}

func ParseCategories(data []byte) (*CategoryTable, error) {
	var file categoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if file.IconDir == "" {
		file.IconDir = "icons"
	}
	if file.Default.Color == "" {
		file.Default.Color = "#444"
	}
	if file.Default.Icon == "" {
		file.Default.Icon = "hiking"
	}

	table := &CategoryTable{
		iconDir:  strings.TrimSuffix(file.IconDir, "/"),
		fallback: file.Default,
		byKey:    make(map[string]Category, len(file.Categories)),
	}

	for i, c := range file.Categories {
		if err := validateCategory(c); err != nil {
			return nil, fmt.Errorf("category at index %d: %w", i, err)
		}
		if _, exists := table.byKey[c.Key]; exists {
			return nil, fmt.Errorf("duplicate category key: %s", c.Key)
		}
		if c.Icon == "" {
			c.Icon = c.Key
		}
		table.byKey[c.Key] = c
		table.ordered = append(table.ordered, c)
	}

	return table, nil
}

func validateCategory(c Category) error {
	requiredFields := map[string]string{
		"key":   c.Key,
		"label": c.Label,
		"color": c.Color,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if !strings.HasPrefix(c.Color, "#") {
		return fmt.Errorf("color must be a hex value, got %q", c.Color)
	}

	return nil
}

// Keys returns the configured tags in table order.
func (t *CategoryTable) Keys() []string {
	keys := make([]string, len(t.ordered))
	for i, c := range t.ordered {
		keys[i] = c.Key
	}
	return keys
}

func (t *CategoryTable) Categories() []Category {
	out := make([]Category, len(t.ordered))
	copy(out, t.ordered)
	return out
}

func (t *CategoryTable) Has(key string) bool {
	_, ok := t.byKey[key]
	return ok
}

// Lookup never fails: unknown tags get the default color and icon and use
// the tag itself as label.
func (t *CategoryTable) Lookup(key string) Category {
	if c, ok := t.byKey[key]; ok {
		return c
	}
	return Category{
		Key:   key,
		Label: key,
		Color: t.fallback.Color,
		Icon:  t.fallback.Icon,
	}
}

func (t *CategoryTable) Label(key string) string {
	return t.Lookup(key).Label
}

func (t *CategoryTable) Color(key string) string {
	return t.Lookup(key).Color
}

func (t *CategoryTable) IconURL(key string) string {
	return t.iconDir + "/" + t.Lookup(key).Icon + ".svg"
}

// IconHTML renders the icon image tag used in badges, titles and rows.
func (t *CategoryTable) IconHTML(key string, size int) string {
	return fmt.Sprintf(`<img src="%s" alt="" width="%d" height="%d" class="icon"/>`,
		html.EscapeString(t.IconURL(key)), size, size)
}
