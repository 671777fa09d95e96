package extension

import (
	"strings"

	"github.com/sourcekit/extmgr/internal/branding"
	"github.com/sourcekit/extmgr/internal/source"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	// LangUnknown is used when a package name carries no language segment.
	LangUnknown = "unknown"
	// LangMulti marks an extension whose sources span several languages.
	LangMulti = "all"
)

// LangFromPackage extracts the language segment that follows the package
// prefix, e.g. "en" from "io.sourcekit.extension.en.foo".
func LangFromPackage(pkgName string) string {
	rest, ok := strings.CutPrefix(pkgName, branding.PackagePrefix())
	if !ok {
		return LangUnknown
	}
	lang, _, found := strings.Cut(rest, ".")
	if !found || lang == "" {
		return LangUnknown
	}
	return lang
}

// SourcesLang derives an extension's language from its sources: empty when
// none of them is a catalogue source, the shared code when they agree, and
// LangMulti otherwise.
func SourcesLang(sources []source.Source) string {
	lang := ""
	seen := false
	for _, s := range sources {
		cs, ok := s.(source.CatalogueSource)
		if !ok {
			continue
		}
		if !seen {
			lang, seen = cs.Lang(), true
			continue
		}
		if cs.Lang() != lang {
			return LangMulti
		}
	}
	return lang
}

// LangDisplayName renders a language code for people.
func LangDisplayName(code string) string {
	switch code {
	case "", LangUnknown:
		return "Other"
	case LangMulti:
		return "All"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
