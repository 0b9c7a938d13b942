package grid

import (
	"strings"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"
)

// displayLocale is a supported locale with its month/day layout.
type displayLocale struct {
	tag       language.Tag
	names     monday.Locale
	dateShort string
}

// The "Jan" in each layout is translated by monday, so rows that share a
// layout still render their own month abbreviations.
var displayLocales = []displayLocale{
	{language.MustParse("en-US"), monday.Locale("en_US"), "Jan 2"},
	{language.MustParse("en-GB"), monday.Locale("en_GB"), "2 Jan"},
	{language.MustParse("de-DE"), monday.Locale("de_DE"), "2. Jan"},
	{language.MustParse("fr-FR"), monday.Locale("fr_FR"), "2 Jan"},
	{language.MustParse("es-ES"), monday.Locale("es_ES"), "2 Jan"},
	{language.MustParse("it-IT"), monday.Locale("it_IT"), "2 Jan"},
	{language.MustParse("nl-NL"), monday.Locale("nl_NL"), "2 Jan"},
	{language.MustParse("pt-BR"), monday.Locale("pt_BR"), "2 Jan"},
	{language.MustParse("pl-PL"), monday.Locale("pl_PL"), "2 Jan"},
	{language.MustParse("sv-SE"), monday.Locale("sv_SE"), "2 Jan"},
	{language.MustParse("fi-FI"), monday.Locale("fi_FI"), "2.1."},
	{language.MustParse("ru-RU"), monday.Locale("ru_RU"), "2 Jan"},
	{language.MustParse("ja-JP"), monday.Locale("ja_JP"), "1月2日"},
	{language.MustParse("ko-KR"), monday.Locale("ko_KR"), "1월 2일"},
	{language.MustParse("zh-CN"), monday.Locale("zh_CN"), "1月2日"},
}

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(displayLocales))
	for i, l := range displayLocales {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// resolveLocale maps a BCP 47 or POSIX-style identifier ("de", "de-AT",
// "pt_BR") to the closest supported locale. Unknown or empty identifiers
// resolve to American English.
func resolveLocale(id string) displayLocale {
	id = strings.TrimSpace(strings.ReplaceAll(id, "_", "-"))
	if id == "" {
		return displayLocales[0]
	}
	tag, err := language.Parse(id)
	if err != nil {
		return displayLocales[0]
	}
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No || idx < 0 || idx >= len(displayLocales) {
		return displayLocales[0]
	}
	return displayLocales[idx]
}

func (l displayLocale) weekday(t time.Time) string {
	return monday.Format(t, "Mon", l.names)
}

func (l displayLocale) date(t time.Time) string {
	return monday.Format(t, l.dateShort, l.names)
}

// ResolveLocale returns the tag of the supported locale id resolves to.
func ResolveLocale(id string) string {
	return resolveLocale(id).tag.String()
}
