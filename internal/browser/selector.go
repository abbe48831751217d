package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// Selector is a query in one of the two syntaxes the session understands.
type Selector struct {
	Query string
	CSS   bool
}

// XPath returns an XPath selector.
func XPath(q string) Selector { return Selector{Query: q} }

// CSS returns a CSS selector.
func CSS(q string) Selector { return Selector{Query: q, CSS: true} }

func (s Selector) String() string { return s.Query }

func (s Selector) by() chromedp.QueryOption {
	if s.CSS {
		return chromedp.ByQuery
	}
	return chromedp.BySearch
}

// Within scopes an XPath selector below the first match of parent.
func (s Selector) Within(parent Selector) Selector {
	return XPath("(" + parent.Query + ")[1]" + strings.TrimPrefix(s.Query, "."))
}

// XPathLiteral quotes s as an XPath 1.0 string literal.
//
// XPath has no escape sequences, so a string holding both quote kinds is split
// into a concat() of pieces.
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	pieces := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			pieces = append(pieces, `"'"`)
		}
		if p != "" {
			pieces = append(pieces, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(pieces, ", ") + ")"
}

// ExactText returns one selector per tag matching elements whose own text equals text,
// ignoring surrounding and repeated whitespace.
func ExactText(text string, tags ...string) []Selector {
	lit := XPathLiteral(strings.Join(strings.Fields(text), " "))
	out := make([]Selector, 0, len(tags))
	for _, tag := range tags {
		out = append(out, XPath(fmt.Sprintf("//%s[normalize-space(text())=%s]", tag, lit)))
	}
	return out
}

// ContainsText matches tag elements whose own text contains any of texts.
func ContainsText(tag string, texts ...string) Selector {
	conds := make([]string, 0, len(texts))
	for _, t := range texts {
		conds = append(conds, fmt.Sprintf("contains(text(), %s)", XPathLiteral(t)))
	}
	return XPath(fmt.Sprintf("//%s[%s]", tag, strings.Join(conds, " or ")))
}

var captchaMarkers = []string{"captcha", "not a robot", "are you a robot", "not a bot"}

// DetectCaptcha reports whether page markup looks like a bot challenge.
//
// A bare "robot" is not enough since most pages carry a robots meta tag.
func DetectCaptcha(html string) bool {
	lower := strings.ToLower(html)
	for _, m := range captchaMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
