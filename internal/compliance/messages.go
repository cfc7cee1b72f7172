package compliance

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"

	"kuruma/pkg/platform/i18n"
)

// MessageType drives how a consumer renders a compliance message.
type MessageType string

const (
	MessageTypeSuccess MessageType = "success"
	MessageTypeWarning MessageType = "warning"
	MessageTypeError   MessageType = "error"
	MessageTypeInfo    MessageType = "info"
)

// Message is localized, display-ready compliance copy.
type Message struct {
	Type    MessageType `json:"type"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

const (
	keyLicenseRequired  = "compliance.license_required"
	keyApproachingLimit = "compliance.approaching_limit"
	keyLicensedDealer   = "compliance.licensed_dealer"
	keyCompliant        = "compliance.compliant"
)

//go:embed locales/*.yaml
var localeFS embed.FS

var messages = mustLoadCatalog(localeFS)

// MessageFor maps a status to localized copy. First match wins:
// license required, then warning, then dealer, then the generic message.
// Unsupported languages fall back to English.
func MessageFor(s Status, tag language.Tag) Message {
	var (
		typ MessageType
		key string
	)
	switch {
	case s.RequiresLicense:
		typ, key = MessageTypeError, keyLicenseRequired
	case s.WarningLevel == WarningLevelWarning:
		typ, key = MessageTypeWarning, keyApproachingLimit
	case s.AccountType == AccountTypeDealer:
		typ, key = MessageTypeSuccess, keyLicensedDealer
	default:
		typ, key = MessageTypeInfo, keyCompliant
	}

	p := message.NewPrinter(i18n.MatchTags([]language.Tag{tag}), message.Catalog(messages))
	return Message{
		Type:    typ,
		Title:   p.Sprintf(key + ".title"),
		Message: p.Sprintf(key + ".message"),
	}
}

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

func loadCatalog(fsys fs.FS) (*catalog.Builder, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale files: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale files found")
	}
	sort.Strings(paths)

	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var file localeFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		tag, err := language.Parse(file.Locale)
		if err != nil {
			return nil, fmt.Errorf("%s: locale %q: %w", path, file.Locale, err)
		}
		if len(file.Messages) == 0 {
			return nil, fmt.Errorf("%s: messages are required", path)
		}
		for key, value := range file.Messages {
			if err := b.SetString(tag, key, value); err != nil {
				return nil, fmt.Errorf("%s: set %q: %w", path, key, err)
			}
		}
	}
	return b, nil
}

func mustLoadCatalog(fsys fs.FS) *catalog.Builder {
	b, err := loadCatalog(fsys)
	if err != nil {
		panic(err)
	}
	return b
}
