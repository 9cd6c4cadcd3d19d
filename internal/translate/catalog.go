package translate

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language is one supported translation target
type Language struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Catalog resolves user supplied language names or codes
type Catalog struct {
	languages []Language
	byKey     map[string]Language
}

// NewCatalog builds a catalog from ISO 639-1 codes, naming each language in English
func NewCatalog(codes []string) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]Language)}
	namer := display.English.Tags()

	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		tag, err := language.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("invalid language code %q: %w", code, err)
		}
		base, _ := tag.Base()
		lang := Language{Name: namer.Name(tag), Code: base.String()}
		if _, dup := c.byKey[strings.ToLower(lang.Code)]; dup {
			continue
		}

		c.languages = append(c.languages, lang)
		c.byKey[strings.ToLower(lang.Name)] = lang
		c.byKey[strings.ToLower(lang.Code)] = lang
	}

	if len(c.languages) == 0 {
		return nil, fmt.Errorf("no translation languages configured")
	}
	return c, nil
}

// Lookup finds a language by English name or code, ignoring case
func (c *Catalog) Lookup(nameOrCode string) (Language, bool) {
	lang, ok := c.byKey[strings.ToLower(strings.TrimSpace(nameOrCode))]
	return lang, ok
}

// Names lists the supported languages in configuration order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.languages))
	for i, l := range c.languages {
		names[i] = l.Name
	}
	return names
}

