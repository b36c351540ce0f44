package digest

import (
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"mvdan.cc/xurls/v2"
)

// allowedTags is the tag allow-list applied to rich-text message bodies.
// Anything outside this list is stripped, tags and content attributes alike.
// h1 and h2 are excluded so a heading cannot shout across the whole email,
// and img is excluded entirely; message images reach the template through the
// dedicated image path, never through body markup.
var allowedTags = []string{
	"font", "del",
	"h3", "h4", "h5", "h6",
	"blockquote", "p", "a", "ul", "ol", "nl", "li",
	"b", "i", "u", "strong", "em", "strike", "code",
	"hr", "br", "div",
	"table", "thead", "caption", "tbody", "tr", "th", "td",
	"pre",
}

// SanitizationPolicy renders untrusted message bodies safe for embedding in
// email HTML. It implements Sanitizer.
type SanitizationPolicy struct {
	policy  *bluemonday.Policy
	urlFind *regexp.Regexp
}

var _ Sanitizer = (*SanitizationPolicy)(nil)

// NewSanitizationPolicy builds the digest sanitizer. Rich-text bodies keep
// only the allow-listed tags; anchors keep href, name, and target when the
// URL parses and uses an allowed scheme, font keeps only color.
func NewSanitizationPolicy() *SanitizationPolicy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedTags...)
	p.AllowAttrs("href", "name", "target").OnElements("a")
	p.AllowAttrs("color").OnElements("font")
	p.AllowURLSchemes("http", "https", "ftp", "mailto")
	p.RequireParseableURLs(true)

	return &SanitizationPolicy{
		policy:  p,
		urlFind: xurls.Relaxed(),
	}
}

// SafeHTML sanitizes an HTML-formatted message body against the allow-list.
func (s *SanitizationPolicy) SafeHTML(raw string) template.HTML {
	return template.HTML(s.policy.Sanitize(raw))
}

// EscapeAndLinkify escapes a plain-text body and wraps anything that looks
// like a URL in an anchor. Schemeless matches ("example.com/x") get an http
// prefix in the href while the visible text stays as the author wrote it.
func (s *SanitizationPolicy) EscapeAndLinkify(raw string) template.HTML {
	matches := s.urlFind.FindAllStringIndex(raw, -1)
	if len(matches) == 0 {
		return template.HTML(html.EscapeString(raw))
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(html.EscapeString(raw[last:m[0]]))

		urlText := raw[m[0]:m[1]]
		href := urlText
		if !strings.Contains(href, "://") && !strings.HasPrefix(strings.ToLower(href), "mailto:") {
			href = "http://" + href
		}
		sb.WriteString(`<a href="`)
		sb.WriteString(html.EscapeString(href))
		sb.WriteString(`">`)
		sb.WriteString(html.EscapeString(urlText))
		sb.WriteString(`</a>`)

		last = m[1]
	}
	sb.WriteString(html.EscapeString(raw[last:]))

	return template.HTML(sb.String())
}
