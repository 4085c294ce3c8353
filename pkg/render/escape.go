package render

import "strings"

var (
	textEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
		"\n", "&#10;",
		"\r", "&#13;",
		"\t", "&#9;",
	)
)

// escapeText escapes character data. Quotes are left alone: they are only
// significant inside attribute values.
func escapeText(s string) string {
	return textEscaper.Replace(s)
}

// escapeAttr escapes a double-quoted attribute value, including whitespace
// that would otherwise be normalized by the parser.
func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}
