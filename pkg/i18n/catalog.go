package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

//go:embed locales/*.yaml
var bundled embed.FS

// Catalog stores locale-key translations in memory. It is filled at startup
// and read-only afterwards.
type Catalog struct {
	defaultLocale string
	fallbackMode  string
	messages      map[string]map[string]string
}

// NewCatalog creates an empty translation catalog.
func NewCatalog(defaultLocale, fallbackMode string) *Catalog {
	mode := strings.ToLower(strings.TrimSpace(fallbackMode))
	if mode == "" {
		mode = "base"
	}
	return &Catalog{
		defaultLocale: normalizeLocale(defaultLocale),
		fallbackMode:  mode,
		messages:      map[string]map[string]string{},
	}
}

// LoadCatalog loads the bundled catalogs and overlays the YAML files found in
// overrideDir, if any. Files are named after their locale, e.g. es.yaml.
func LoadCatalog(defaultLocale, fallbackMode, overrideDir string) (*Catalog, error) {
	catalog := NewCatalog(defaultLocale, fallbackMode)
	if err := catalog.LoadFS(bundled, "locales"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := catalog.LoadFS(os.DirFS(overrideDir), "."); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// LoadFS adds every *.yaml or *.yml file of dir in fsys.
func (c *Catalog) LoadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read i18n catalog dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		locale := strings.TrimSpace(strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())))
		if locale == "" {
			continue
		}

		filePath := path.Join(dir, entry.Name())
		raw, err := fs.ReadFile(fsys, filePath)
		if err != nil {
			return fmt.Errorf("read i18n catalog %s: %w", filePath, err)
		}
		var payload map[string]any
		if err := yaml.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("decode i18n catalog %s: %w", filePath, err)
		}
		c.Add(locale, flattenCatalog(payload, ""))
	}
	return nil
}

// Locales lists the locales holding at least one message, sorted.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.messages))
	for locale := range c.messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// ForLocale returns a locale-bound translator.
func (c *Catalog) ForLocale(locale string) Translator {
	return localizedTranslator{
		catalog: c,
		locale:  normalizeLocale(locale),
	}
}

// Add inserts translations for a locale.
func (c *Catalog) Add(locale string, entries map[string]string) {
	locale = normalizeLocale(locale)
	if locale == "" {
		return
	}
	if c.messages[locale] == nil {
		c.messages[locale] = map[string]string{}
	}
	for key, value := range entries {
		if strings.TrimSpace(key) == "" {
			continue
		}
		c.messages[locale][key] = value
	}
}

type localizedTranslator struct {
	catalog *Catalog
	locale  string
}

func (t localizedTranslator) T(key string, args ...any) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if t.catalog == nil {
		return key
	}

	template := t.catalog.lookup(t.locale, key)
	if template == "" {
		return key
	}
	return applyTemplateParams(template, parseTemplateArgs(args...))
}

func (c *Catalog) lookup(locale, key string) string {
	for _, candidate := range c.fallbackLocales(locale) {
		if entries := c.messages[candidate]; entries != nil {
			if value, ok := entries[key]; ok {
				return value
			}
		}
	}
	return ""
}

// fallbackLocales is locale, its base language, then the default locale and its base.
func (c *Catalog) fallbackLocales(locale string) []string {
	ordered := []string{}
	seen := map[string]struct{}{}

	add := func(item string) {
		item = normalizeLocale(item)
		if item == "" {
			return
		}
		if _, exists := seen[item]; exists {
			return
		}
		seen[item] = struct{}{}
		ordered = append(ordered, item)
	}

	base := c.fallbackMode == "base"
	add(locale)
	if base {
		add(baseLocale(locale))
	}
	add(c.defaultLocale)
	if base {
		add(baseLocale(c.defaultLocale))
	}
	return ordered
}

func parseTemplateArgs(args ...any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	if len(args) == 1 {
		switch v := args[0].(type) {
		case map[string]any:
			return v
		case Params:
			return map[string]any(v)
		}
	}

	params := map[string]any{}
	for idx := 0; idx+1 < len(args); idx += 2 {
		key, ok := args[idx].(string)
		if !ok {
			continue
		}
		params[key] = args[idx+1]
	}
	return params
}

func applyTemplateParams(template string, params map[string]any) string {
	if len(params) == 0 {
		return template
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := template
	for _, key := range keys {
		value := fmt.Sprint(params[key])
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}

func flattenCatalog(payload map[string]any, prefix string) map[string]string {
	out := map[string]string{}
	for key, value := range payload {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		switch node := value.(type) {
		case map[string]any:
			for k, v := range flattenCatalog(node, fullKey) {
				out[k] = v
			}
		case string:
			out[fullKey] = node
		}
	}
	return out
}

var localeCleaner = regexp.MustCompile(`[^a-zA-Z0-9\-]`)

func normalizeLocale(locale string) string {
	locale = strings.TrimSpace(strings.ReplaceAll(locale, "_", "-"))
	locale = localeCleaner.ReplaceAllString(locale, "")
	return strings.ToLower(locale)
}

func baseLocale(locale string) string {
	locale = normalizeLocale(locale)
	if idx := strings.Index(locale, "-"); idx > 0 {
		return locale[:idx]
	}
	return locale
}
