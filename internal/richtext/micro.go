package richtext

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/local/sheetpress/internal/block"
)

// Gap/choice micro-syntax:
//
//	{{blank:answer}}            fill-in-blank gap, canonical answer inside
//	{{correct|wrong1|wrong2}}   inline choice, first option correct
//	{{choice:*correct|wrong}}   legacy inline choice, * marks correct
//
// The delimiters must survive the locale transform untouched; only the
// human-readable option text is ever substituted.

var (
	blankRe       = regexp.MustCompile(`\{\{blank:([^}]+)\}\}`)
	choiceSplitRe = regexp.MustCompile(`(\{\{(?:choice:)?[^}]+\}\})`)
	choiceMatchRe = regexp.MustCompile(`\{\{(?:choice:)?(.+)\}\}`)
)

// SegmentKind discriminates parsed content segments.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentChoice
)

// Segment is either literal text or a choice group. For choice groups the
// first option is the correct answer.
type Segment struct {
	Kind    SegmentKind
	Value   string
	Options []string
}

// ParseChoiceSegments splits content into alternating text and choice
// segments. Legacy *-prefixed correct options are normalised to index 0
// with the marker stripped.
func ParseChoiceSegments(content string) []Segment {
	parts := splitKeepingDelims(content)
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		m := choiceMatchRe.FindStringSubmatch(part)
		if m == nil || !choiceSplitRe.MatchString(part) {
			// Empty text segments are kept: they mark positions between
			// adjacent choices.
			segments = append(segments, Segment{Kind: SegmentText, Value: part})
			continue
		}
		raw := strings.Split(m[1], "|")
		options := normalizeOptions(raw)
		segments = append(segments, Segment{Kind: SegmentChoice, Options: options})
	}
	return segments
}

// splitKeepingDelims mimics a split on the choice regexp that retains the
// delimiter matches as their own elements.
func splitKeepingDelims(content string) []string {
	locs := choiceSplitRe.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return []string{content}
	}
	var parts []string
	prev := 0
	for _, loc := range locs {
		parts = append(parts, content[prev:loc[0]], content[loc[0]:loc[1]])
		prev = loc[1]
	}
	parts = append(parts, content[prev:])
	return parts
}

func normalizeOptions(raw []string) []string {
	starIdx := -1
	for i, o := range raw {
		if strings.HasPrefix(o, "*") {
			starIdx = i
			break
		}
	}
	if starIdx < 0 {
		return raw
	}
	options := make([]string, 0, len(raw))
	options = append(options, strings.TrimPrefix(raw[starIdx], "*"))
	for i, o := range raw {
		if i == starIdx {
			continue
		}
		options = append(options, strings.TrimPrefix(o, "*"))
	}
	return options
}

// SerializeChoiceSegments writes segments back in the new syntax (first
// option correct, no markers).
func SerializeChoiceSegments(segments []Segment) string {
	var sb strings.Builder
	for _, seg := range segments {
		if seg.Kind == SegmentChoice {
			sb.WriteString("{{" + strings.Join(seg.Options, "|") + "}}")
		} else {
			sb.WriteString(seg.Value)
		}
	}
	return sb.String()
}

// MigrateChoiceSyntax rewrites legacy {{choice:*correct|wrong}} markers to
// the new form. Idempotent: already-new content passes through unchanged.
func MigrateChoiceSyntax(content string) string {
	return SerializeChoiceSegments(ParseChoiceSegments(content))
}

// ChoiceGroups returns the options of every choice group in content.
func ChoiceGroups(content string) [][]string {
	var groups [][]string
	for _, seg := range ParseChoiceSegments(content) {
		if seg.Kind == SegmentChoice {
			groups = append(groups, seg.Options)
		}
	}
	return groups
}

// ValidateChoices reports authoring problems in a content string.
func ValidateChoices(content string) []string {
	var warnings []string
	for i, options := range ChoiceGroups(content) {
		if len(options) < 2 {
			warnings = append(warnings, fmt.Sprintf("choice %d: at least 2 options needed", i+1))
		}
		for _, o := range options {
			if strings.TrimSpace(o) == "" {
				warnings = append(warnings, fmt.Sprintf("choice %d: empty option", i+1))
				break
			}
		}
	}
	return warnings
}

// ExpandBlanks replaces every {{blank:answer}} with its answer.
func ExpandBlanks(content string) string {
	return blankRe.ReplaceAllString(content, "$1")
}

// Blanks returns the canonical answers of all gaps in content, in order.
func Blanks(content string) []string {
	matches := blankRe.FindAllStringSubmatch(content, -1)
	answers := make([]string, 0, len(matches))
	for _, m := range matches {
		answers = append(answers, m[1])
	}
	return answers
}

// ExpandInlineChoices collapses every choice group to its correct option.
func ExpandInlineChoices(content string) string {
	var sb strings.Builder
	for _, seg := range ParseChoiceSegments(content) {
		if seg.Kind == SegmentChoice {
			if len(seg.Options) > 0 {
				sb.WriteString(seg.Options[0])
			}
		} else {
			sb.WriteString(seg.Value)
		}
	}
	return sb.String()
}

// MigrateInlineChoices converts a legacy single-content inline-choices
// block (one item per line) into the items form, normalising legacy choice
// syntax either way.
func MigrateInlineChoices(b *block.InlineChoices) []block.InlineChoiceItem {
	if len(b.Items) > 0 {
		items := make([]block.InlineChoiceItem, len(b.Items))
		for i, item := range b.Items {
			items[i] = block.InlineChoiceItem{ID: item.ID, Content: MigrateChoiceSyntax(item.Content)}
		}
		return items
	}
	if b.Content == "" {
		return nil
	}
	var items []block.InlineChoiceItem
	for i, line := range strings.Split(b.Content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		items = append(items, block.InlineChoiceItem{
			ID:      fmt.Sprintf("%s-ic%d", b.ID, i),
			Content: MigrateChoiceSyntax(line),
		})
	}
	return items
}
