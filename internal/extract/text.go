package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// normalizeText reduces a snippet to a single line of visible text.
// Markup is parsed and stripped; plain text only has whitespace collapsed.
func normalizeText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if looksLikeHTML(trimmed) {
		if doc, err := html.Parse(strings.NewReader(trimmed)); err == nil {
			trimmed = extractVisibleText(doc)
		}
	}
	return strings.Join(strings.Fields(trimmed), " ")
}

func looksLikeHTML(s string) bool {
	return strings.HasPrefix(s, "<") && strings.Contains(s, ">")
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}

// truncate caps s at max runes, appending an ellipsis when cut
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

// dedupeNames removes case-insensitive duplicates, keeping first spelling
func dedupeNames(names []string) []string {
	seen := make(map[string]bool)
	var unique []string

	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, strings.TrimSpace(name))
	}

	return unique
}

// leadingStopwords are dropped from the front of a captured company name
var leadingStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "on": true, "in": true, "as": true, "after": true,
	"today": true, "yesterday": true, "this": true, "last": true, "now": true, "breaking": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true, "january": true, "february": true,
	"march": true, "april": true, "may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// descriptorSuffixes mark a leading qualifier such as "Boston-based"
var descriptorSuffixes = []string{"-based", "-headquartered", "-backed", "-born", "-founded"}

// leadingDescriptors are qualifiers that precede a company name
var leadingDescriptors = map[string]bool{
	"startup": true, "start-up": true, "climate-tech": true, "climatetech": true,
	"carbon-tech": true, "fintech": true, "scaleup": true, "scale-up": true,
}

// isLeadingFiller reports whether w is a word to drop from the front of a
// company name: stopwords, descriptors and bare day or year numbers
func isLeadingFiller(w string) bool {
	w = strings.ToLower(strings.Trim(w, ",:"))
	if leadingStopwords[w] || leadingDescriptors[w] {
		return true
	}
	for _, suffix := range descriptorSuffixes {
		if strings.HasSuffix(w, suffix) && len(w) > len(suffix) {
			return true
		}
	}
	return w != "" && strings.Trim(w, "0123456789") == ""
}

// cleanCompany trims punctuation, leading filler words and possessives
// from a captured company name
func cleanCompany(raw string) string {
	words := strings.Fields(strings.Trim(raw, " ,;:-"))
	for len(words) > 1 && isLeadingFiller(words[0]) {
		words = words[1:]
	}
	name := strings.Join(words, " ")
	name = strings.TrimSuffix(name, "'s")
	name = strings.TrimSuffix(name, "’s")
	return strings.Trim(name, " ,;:-")
}
