// Package locale rewrites a worksheet's text content from German (DE) to
// Swiss (CH) orthography: every ß becomes ss. The transform walks the full
// block tree structurally and is idempotent — "ss" never matches the
// substitution again. Manual per-field overrides (see overrides.go) layer
// on top and always win over the automatic rule.
package locale

import (
	"strings"

	"github.com/local/sheetpress/internal/block"
)

// Mode selects which orthography a caller wants to see.
type Mode string

const (
	ModeDE Mode = "DE"
	ModeCH Mode = "CH"
	// ModeDACH labels the locale-neutral variant in export filenames.
	ModeDACH Mode = "DACH"
)

// Eszett applies the automatic substitution to one string.
func Eszett(s string) string {
	return strings.ReplaceAll(s, "ß", "ss")
}

// EszettSlice maps Eszett over a string slice, returning a new slice.
func EszettSlice(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Eszett(s)
	}
	return out
}

// EszettAny walks an arbitrary decoded-JSON value (maps, slices, strings)
// generically. Used for shapes the typed switch does not know, so newly
// added fields are transformed rather than silently skipped.
func EszettAny(v any) any {
	switch t := v.(type) {
	case string:
		return Eszett(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = EszettAny(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = EszettAny(e)
		}
		return out
	default:
		return v
	}
}

// TransformDocument returns a CH-orthography copy of the whole document:
// title, blocks and the text-bearing settings fields.
func TransformDocument(doc block.Document) block.Document {
	out := doc
	out.Title = Eszett(doc.Title)
	out.Blocks = TransformBlocks(doc.Blocks)
	out.Settings = TransformSettings(doc.Settings)
	return out
}

// TransformSettings rewrites the header/footer and cover text slots.
func TransformSettings(s block.Settings) block.Settings {
	out := s
	out.HeaderText = Eszett(s.HeaderText)
	out.FooterText = Eszett(s.FooterText)
	out.CoverSubtitle = Eszett(s.CoverSubtitle)
	out.CoverInfoText = Eszett(s.CoverInfoText)
	bs := s.BrandSettings
	bs.Organization = Eszett(bs.Organization)
	bs.Teacher = Eszett(bs.Teacher)
	bs.HeaderRight = Eszett(bs.HeaderRight)
	bs.FooterLeft = Eszett(bs.FooterLeft)
	bs.FooterCenter = Eszett(bs.FooterCenter)
	bs.FooterRight = Eszett(bs.FooterRight)
	out.BrandSettings = bs
	return out
}

// TransformBlocks maps TransformBlock over a block list.
func TransformBlocks(blocks []block.Block) []block.Block {
	out := make([]block.Block, len(blocks))
	for i, b := range blocks {
		out[i] = TransformBlock(b)
	}
	return out
}

// TransformBlock returns a transformed copy of one block. The switch is
// exhaustive over the block union; adding a block kind without a case here
// is a bug (new kinds must decide which of their fields carry prose).
// Micro-syntax delimiters pass through: the substitution only ever touches
// the letter ß, which cannot occur in {{, }}, | or the blank:/choice:
// prefixes.
func TransformBlock(b block.Block) block.Block {
	switch v := b.(type) {
	case *block.Heading:
		c := *v
		c.Content = Eszett(v.Content)
		return &c
	case *block.Text:
		c := *v
		c.Content = Eszett(v.Content)
		return &c
	case *block.Image:
		c := *v
		c.Alt = Eszett(v.Alt)
		c.Caption = Eszett(v.Caption)
		return &c
	case *block.ImageCards:
		c := *v
		c.Items = make([]block.ImageCardItem, len(v.Items))
		for i, it := range v.Items {
			it.Alt = Eszett(it.Alt)
			it.Text = Eszett(it.Text)
			c.Items[i] = it
		}
		return &c
	case *block.TextCards:
		c := *v
		c.Items = make([]block.TextCardItem, len(v.Items))
		for i, it := range v.Items {
			it.Text = Eszett(it.Text)
			it.Caption = Eszett(it.Caption)
			c.Items[i] = it
		}
		return &c
	case *block.Spacer:
		c := *v
		return &c
	case *block.Divider:
		c := *v
		return &c
	case *block.Columns:
		c := *v
		c.Children = make([][]block.Block, len(v.Children))
		for i, col := range v.Children {
			c.Children[i] = TransformBlocks(col)
		}
		return &c
	case *block.MultipleChoice:
		c := *v
		c.Question = Eszett(v.Question)
		c.Options = make([]block.ChoiceOption, len(v.Options))
		for i, o := range v.Options {
			o.Text = Eszett(o.Text)
			c.Options[i] = o
		}
		return &c
	case *block.FillInBlank:
		c := *v
		c.Content = Eszett(v.Content)
		return &c
	case *block.Matching:
		c := *v
		c.Instruction = Eszett(v.Instruction)
		c.Pairs = make([]block.MatchingPair, len(v.Pairs))
		for i, p := range v.Pairs {
			p.Left = Eszett(p.Left)
			p.Right = Eszett(p.Right)
			c.Pairs[i] = p
		}
		return &c
	case *block.TwoColumnFill:
		c := *v
		c.Instruction = Eszett(v.Instruction)
		c.Items = make([]block.TwoColumnFillItem, len(v.Items))
		for i, it := range v.Items {
			it.Left = Eszett(it.Left)
			it.Right = Eszett(it.Right)
			c.Items[i] = it
		}
		return &c
	case *block.Glossary:
		c := *v
		c.Instruction = Eszett(v.Instruction)
		c.Pairs = make([]block.GlossaryPair, len(v.Pairs))
		for i, p := range v.Pairs {
			p.Term = Eszett(p.Term)
			p.Definition = Eszett(p.Definition)
			c.Pairs[i] = p
		}
		return &c
	case *block.OpenResponse:
		c := *v
		c.Question = Eszett(v.Question)
		return &c
	case *block.WordBank:
		c := *v
		c.Words = EszettSlice(v.Words)
		return &c
	case *block.NumberLine:
		c := *v
		return &c
	case *block.TrueFalseMatrix:
		c := *v
		c.Instruction = Eszett(v.Instruction)
		c.StatementColumnHeader = Eszett(v.StatementColumnHeader)
		c.Statements = make([]block.TrueFalseStatement, len(v.Statements))
		for i, st := range v.Statements {
			st.Text = Eszett(st.Text)
			c.Statements[i] = st
		}
		return &c
	case *block.ArticleTraining:
		c := *v
		c.Instruction = Eszett(v.Instruction)
		c.Items = make([]block.ArticleItem, len(v.Items))
		for i, it := range v.Items {
			it.Text = Eszett(it.Text)
			c.Items[i] = it
		}
		return &c
	case *block.OrderItems:
		c := *v
		c.Instruction = Eszett(v.Instruction)
		c.Items = make([]block.OrderItem, len(v.Items))
		for i, it := range v.Items {
			it.Text = Eszett(it.Text)
			c.Items[i] = it
		}
		return &c
	case *block.InlineChoices:
		c := *v
		c.Content = Eszett(v.Content)
		c.Items = make([]block.InlineChoiceItem, len(v.Items))
		for i, it := range v.Items {
			it.Content = Eszett(it.Content)
			c.Items[i] = it
		}
		return &c
	case *block.WordSearch:
		c := *v
		c.Words = EszettSlice(v.Words)
		// Grid letters are uppercase A-Z, nothing to substitute.
		return &c
	case *block.SortingCategories:
		c := *v
		c.Instruction = Eszett(v.Instruction)
		c.Categories = make([]block.SortingCategory, len(v.Categories))
		for i, cat := range v.Categories {
			cat.Label = Eszett(cat.Label)
			c.Categories[i] = cat
		}
		c.Items = make([]block.SortingItem, len(v.Items))
		for i, it := range v.Items {
			it.Text = Eszett(it.Text)
			c.Items[i] = it
		}
		return &c
	case *block.UnscrambleWords:
		c := *v
		c.Instruction = Eszett(v.Instruction)
		c.Words = make([]block.UnscrambleWordItem, len(v.Words))
		for i, w := range v.Words {
			w.Word = Eszett(w.Word)
			c.Words[i] = w
		}
		return &c
	case *block.FixSentences:
		c := *v
		c.Instruction = Eszett(v.Instruction)
		c.Sentences = make([]block.FixSentenceItem, len(v.Sentences))
		for i, s := range v.Sentences {
			s.Sentence = Eszett(s.Sentence)
			c.Sentences[i] = s
		}
		return &c
	case *block.CompleteSentences:
		c := *v
		c.Instruction = Eszett(v.Instruction)
		c.Sentences = make([]block.CompleteSentenceItem, len(v.Sentences))
		for i, s := range v.Sentences {
			s.Beginning = Eszett(s.Beginning)
			c.Sentences[i] = s
		}
		return &c
	case *block.VerbTable:
		c := *v
		c.Verb = Eszett(v.Verb)
		c.SingularRows = transformVerbRows(v.SingularRows)
		c.PluralRows = transformVerbRows(v.PluralRows)
		return &c
	default:
		// Unknown shape: leave it alone rather than drop it.
		return b
	}
}

func transformVerbRows(rows []block.VerbTableRow) []block.VerbTableRow {
	out := make([]block.VerbTableRow, len(rows))
	for i, r := range rows {
		r.Person = Eszett(r.Person)
		r.Detail = Eszett(r.Detail)
		r.Pronoun = Eszett(r.Pronoun)
		r.Conjugation = Eszett(r.Conjugation)
		r.Conjugation2 = Eszett(r.Conjugation2)
		out[i] = r
	}
	return out
}
