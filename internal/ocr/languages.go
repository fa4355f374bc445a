package ocr

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/zombor/scanbridge/internal/protocol"
)

// Tesseract data packs that are not natural languages.
var specialLanguages = map[string]string{
	"osd": "Orientation and script detection",
	"equ": "Math / equation detection",
}

// Script variants in Tesseract pack names, e.g. chi_sim.
var scriptVariants = map[string]string{
	"sim":  "Simplified",
	"tra":  "Traditional",
	"vert": "Vertical",
	"frak": "Fraktur",
	"old":  "Old",
	"latn": "Latin",
	"cyrl": "Cyrillic",
}

// LanguageName returns the English display name of a Tesseract language
// code such as "eng", "deu" or "chi_sim". Unknown codes are returned as is.
func LanguageName(code string) string {
	if name, ok := specialLanguages[code]; ok {
		return name
	}
	base, variant, _ := strings.Cut(code, "_")
	tag, err := language.Parse(base)
	if err != nil {
		return code
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return code
	}
	if variant != "" {
		if v, ok := scriptVariants[strings.ToLower(variant)]; ok {
			name += " (" + v + ")"
		} else {
			name += " (" + variant + ")"
		}
	}
	return name
}

// Languages maps codes to protocol languages, sorted by code.
func Languages(codes []string) []protocol.OcrLanguage {
	langs := make([]protocol.OcrLanguage, 0, len(codes))
	seen := make(map[string]bool)
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		langs = append(langs, protocol.OcrLanguage{Code: c, Name: LanguageName(c)})
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i].Code < langs[j].Code })
	return langs
}

// llmLanguages are offered by the LLM engines, which have no fixed list.
var llmLanguages = []string{
	"eng", "deu", "fra", "spa", "ita", "por", "nld", "pol", "swe", "dan",
	"nor", "fin", "ces", "rus", "ukr", "tur", "ell", "jpn", "kor", "chi_sim", "chi_tra",
}
