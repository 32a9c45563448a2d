// Package extract reduces a worksheet to plain text for search indexing.
// HTML is stripped, blanks expand to their answers and inline choices
// collapse to the correct option, so the index sees the solved exercise.
package extract

import (
	"fmt"
	"strings"

	"github.com/local/sheetpress/internal/block"
	"github.com/local/sheetpress/internal/richtext"
)

// Document extracts the full searchable text of a worksheet: title first,
// then every visible block in order, one line per text unit.
func Document(doc block.Document) string {
	parts := []string{doc.Title}
	for _, b := range doc.Blocks {
		if t := Block(b); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// Block extracts one block's plain text. Layout-only blocks yield "".
func Block(b block.Block) string {
	switch v := b.(type) {
	case *block.Heading:
		return richtext.StripHTML(v.Content)
	case *block.Text:
		return richtext.StripHTML(v.Content)
	case *block.Image:
		return join(v.Alt, v.Caption)
	case *block.ImageCards:
		var parts []string
		for _, it := range v.Items {
			parts = append(parts, join(it.Text, it.Alt))
		}
		return join(parts...)
	case *block.TextCards:
		var parts []string
		for _, it := range v.Items {
			parts = append(parts, join(it.Text, it.Caption))
		}
		return join(parts...)
	case *block.Spacer, *block.Divider, *block.NumberLine:
		return ""
	case *block.Columns:
		var parts []string
		for _, col := range v.Children {
			for _, child := range col {
				parts = append(parts, Block(child))
			}
		}
		return join(parts...)
	case *block.MultipleChoice:
		parts := []string{richtext.StripHTML(v.Question)}
		for _, o := range v.Options {
			parts = append(parts, o.Text)
		}
		return join(parts...)
	case *block.FillInBlank:
		return richtext.StripHTML(richtext.ExpandBlanks(v.Content))
	case *block.Matching:
		parts := []string{v.Instruction}
		for _, p := range v.Pairs {
			parts = append(parts, fmt.Sprintf("%s %s", p.Left, p.Right))
		}
		return join(parts...)
	case *block.TwoColumnFill:
		parts := []string{v.Instruction}
		for _, it := range v.Items {
			parts = append(parts, fmt.Sprintf("%s %s", it.Left, it.Right))
		}
		return join(parts...)
	case *block.Glossary:
		parts := []string{v.Instruction}
		for _, p := range v.Pairs {
			parts = append(parts, fmt.Sprintf("%s %s", p.Term, p.Definition))
		}
		return join(parts...)
	case *block.OpenResponse:
		return richtext.StripHTML(v.Question)
	case *block.WordBank:
		return strings.Join(v.Words, " ")
	case *block.TrueFalseMatrix:
		parts := []string{v.Instruction}
		for _, st := range v.Statements {
			parts = append(parts, st.Text)
		}
		return join(parts...)
	case *block.ArticleTraining:
		parts := []string{v.Instruction}
		for _, it := range v.Items {
			parts = append(parts, fmt.Sprintf("%s %s", it.CorrectArticle, it.Text))
		}
		return join(parts...)
	case *block.OrderItems:
		parts := []string{v.Instruction}
		for _, it := range v.Items {
			parts = append(parts, it.Text)
		}
		return join(parts...)
	case *block.InlineChoices:
		var parts []string
		for _, it := range richtext.MigrateInlineChoices(v) {
			parts = append(parts, richtext.ExpandInlineChoices(it.Content))
		}
		return join(parts...)
	case *block.WordSearch:
		// The grid itself is noise; only the word list is searchable.
		return strings.Join(v.Words, " ")
	case *block.SortingCategories:
		parts := []string{v.Instruction}
		for _, c := range v.Categories {
			parts = append(parts, c.Label)
		}
		for _, it := range v.Items {
			parts = append(parts, it.Text)
		}
		return join(parts...)
	case *block.UnscrambleWords:
		parts := []string{v.Instruction}
		for _, w := range v.Words {
			parts = append(parts, w.Word)
		}
		return join(parts...)
	case *block.FixSentences:
		parts := []string{v.Instruction}
		for _, s := range v.Sentences {
			parts = append(parts, strings.ReplaceAll(s.Sentence, " | ", " "))
		}
		return join(parts...)
	case *block.CompleteSentences:
		parts := []string{v.Instruction}
		for _, s := range v.Sentences {
			parts = append(parts, s.Beginning)
		}
		return join(parts...)
	case *block.VerbTable:
		parts := []string{v.Verb}
		for _, r := range append(append([]block.VerbTableRow{}, v.SingularRows...), v.PluralRows...) {
			parts = append(parts, fmt.Sprintf("%s %s", r.Pronoun, r.Conjugation))
		}
		return join(parts...)
	default:
		return ""
	}
}

func join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
