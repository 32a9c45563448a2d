// Package richtext flattens the editor's HTML strings into styled runs and
// parses the {{blank:...}} / {{choice|...}} exercise micro-syntax. The
// renderer contract expects all text pre-resolved: no HTML reaches the PDF
// layer.
package richtext

import (
	"strings"

	"golang.org/x/net/html"
)

// Style is the subset of inline formatting the editor produces.
type Style struct {
	Bold        bool
	Italic      bool
	Underline   bool
	Strike      bool
	Superscript bool
}

// Run is a span of text with a uniform style.
type Run struct {
	Text  string
	Style Style
}

// Paragraph is one block-level line of runs.
type Paragraph struct {
	Runs []Run
}

// Text concatenates the paragraph's runs.
func (p Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Flatten tokenizes an HTML fragment into paragraphs of styled runs.
// Unknown tags are ignored (their text content is kept); <br> starts a new
// paragraph inside the current one the same way the print stylesheet broke
// lines.
func Flatten(fragment string) []Paragraph {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	tok := html.NewTokenizer(strings.NewReader(fragment))

	var (
		paras   []Paragraph
		current Paragraph
		stack   []Style
	)
	style := func() Style {
		if len(stack) == 0 {
			return Style{}
		}
		return stack[len(stack)-1]
	}
	closePara := func() {
		if len(current.Runs) > 0 {
			paras = append(paras, current)
			current = Paragraph{}
		}
	}

	for {
		tt := tok.Next()
		switch tt {
		case html.ErrorToken:
			closePara()
			return paras
		case html.TextToken:
			text := string(tok.Text())
			if text == "" {
				continue
			}
			current.Runs = append(current.Runs, Run{Text: text, Style: style()})
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tok.TagName()
			tag := string(name)
			if tag == "br" || tag == "hr" || tag == "img" {
				closePara()
				continue // void tags never get an end token
			}
			s := style()
			switch tag {
			case "b", "strong":
				s.Bold = true
			case "i", "em":
				s.Italic = true
			case "u":
				s.Underline = true
			case "s", "strike", "del":
				s.Strike = true
			case "sup":
				s.Superscript = true
			case "p", "div", "li":
				closePara()
			}
			if tt == html.StartTagToken {
				stack = append(stack, s)
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			switch string(name) {
			case "p", "div", "li":
				closePara()
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
}

// StripHTML reduces an HTML fragment to plain text with newlines between
// paragraphs.
func StripHTML(fragment string) string {
	paras := Flatten(fragment)
	parts := make([]string, 0, len(paras))
	for _, p := range paras {
		if t := strings.TrimSpace(p.Text()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
