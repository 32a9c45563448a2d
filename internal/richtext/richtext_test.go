package richtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/sheetpress/internal/block"
)

func TestFlattenStyles(t *testing.T) {
	paras := Flatten("<p>Das ist <b>fett</b> und <i>kursiv</i>.</p>")
	require.Len(t, paras, 1)
	runs := paras[0].Runs
	require.Len(t, runs, 5)
	assert.Equal(t, "Das ist ", runs[0].Text)
	assert.False(t, runs[0].Style.Bold)
	assert.Equal(t, "fett", runs[1].Text)
	assert.True(t, runs[1].Style.Bold)
	assert.Equal(t, "kursiv", runs[3].Text)
	assert.True(t, runs[3].Style.Italic)
}

func TestFlattenNestedStyles(t *testing.T) {
	paras := Flatten("<b>fett <u>und unterstrichen</u></b> normal")
	require.Len(t, paras, 1)
	runs := paras[0].Runs
	require.Len(t, runs, 3)
	assert.True(t, runs[0].Style.Bold)
	assert.False(t, runs[0].Style.Underline)
	assert.True(t, runs[1].Style.Bold)
	assert.True(t, runs[1].Style.Underline)
	assert.Equal(t, Style{}, runs[2].Style)
}

func TestFlattenParagraphsAndBreaks(t *testing.T) {
	paras := Flatten("<p>eins</p><p>zwei<br>drei</p>")
	require.Len(t, paras, 3)
	assert.Equal(t, "eins", paras[0].Text())
	assert.Equal(t, "zwei", paras[1].Text())
	assert.Equal(t, "drei", paras[2].Text())
}

func TestFlattenStyleSurvivesParagraphInside(t *testing.T) {
	// A paragraph boundary inside a styled span must not lose the style.
	paras := Flatten("<b><p>x</p><p>y</p></b>")
	require.Len(t, paras, 2)
	assert.True(t, paras[0].Runs[0].Style.Bold)
	assert.True(t, paras[1].Runs[0].Style.Bold)
}

func TestFlattenEmpty(t *testing.T) {
	assert.Nil(t, Flatten(""))
	assert.Nil(t, Flatten("   "))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "eins\nzwei", StripHTML("<p>eins</p><p><b>zwei</b></p>"))
	assert.Equal(t, "plain", StripHTML("plain"))
}

func TestParseChoiceSegments(t *testing.T) {
	segs := ParseChoiceSegments("Der {{Hund|Katze}} bellt.")
	require.Len(t, segs, 3)
	assert.Equal(t, SegmentText, segs[0].Kind)
	assert.Equal(t, "Der ", segs[0].Value)
	assert.Equal(t, SegmentChoice, segs[1].Kind)
	assert.Equal(t, []string{"Hund", "Katze"}, segs[1].Options)
	assert.Equal(t, " bellt.", segs[2].Value)
}

func TestParseChoiceSegmentsLegacyStar(t *testing.T) {
	segs := ParseChoiceSegments("{{choice:falsch|*richtig|auch falsch}}")
	require.Len(t, segs, 3) // empty text segments flank the choice
	assert.Equal(t, SegmentChoice, segs[1].Kind)
	assert.Equal(t, []string{"richtig", "falsch", "auch falsch"}, segs[1].Options)
}

func TestMigrateChoiceSyntax(t *testing.T) {
	legacy := "Er {{choice:*geht|gehen}} nach Hause."
	want := "Er {{geht|gehen}} nach Hause."
	assert.Equal(t, want, MigrateChoiceSyntax(legacy))
	// Idempotent on already-migrated content.
	assert.Equal(t, want, MigrateChoiceSyntax(want))
}

func TestChoiceGroups(t *testing.T) {
	groups := ChoiceGroups("{{a|b}} x {{c|d|e}}")
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"a", "b"}, groups[0])
	assert.Equal(t, []string{"c", "d", "e"}, groups[1])
}

func TestValidateChoices(t *testing.T) {
	assert.Empty(t, ValidateChoices("Der {{Hund|Katze}} bellt."))
	warnings := ValidateChoices("{{allein}} und {{a| }}")
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "at least 2 options")
	assert.Contains(t, warnings[1], "empty option")
}

func TestExpandBlanksAndBlanks(t *testing.T) {
	content := "Die {{blank:Katze}} jagt die {{blank:Maus}}."
	assert.Equal(t, "Die Katze jagt die Maus.", ExpandBlanks(content))
	assert.Equal(t, []string{"Katze", "Maus"}, Blanks(content))
	assert.Empty(t, Blanks("ohne Lücke"))
}

func TestExpandInlineChoices(t *testing.T) {
	assert.Equal(t, "Der Hund bellt.", ExpandInlineChoices("Der {{Hund|Katze}} bellt."))
	assert.Equal(t, "Er geht.", ExpandInlineChoices("Er {{choice:*geht|gehen}}."))
}

func TestMigrateInlineChoicesFromContent(t *testing.T) {
	b := &block.InlineChoices{
		Base:    block.Base{ID: "ic1", Type: block.KindInlineChoices},
		Content: "Er {{choice:*geht|gehen}}.\n\nSie {{liest|lesen}}.",
	}
	items := MigrateInlineChoices(b)
	require.Len(t, items, 2)
	assert.Equal(t, "ic1-ic0", items[0].ID)
	assert.Equal(t, "Er {{geht|gehen}}.", items[0].Content)
	assert.Equal(t, "Sie {{liest|lesen}}.", items[1].Content)
}

func TestMigrateInlineChoicesItemsTakePrecedence(t *testing.T) {
	b := &block.InlineChoices{
		Base:    block.Base{ID: "ic1", Type: block.KindInlineChoices},
		Content: "ignored {{a|b}}",
		Items: []block.InlineChoiceItem{
			{ID: "x", Content: "{{choice:b|*a}}"},
		},
	}
	items := MigrateInlineChoices(b)
	require.Len(t, items, 1)
	assert.Equal(t, "x", items[0].ID)
	assert.Equal(t, "{{a|b}}", items[0].Content)
}
