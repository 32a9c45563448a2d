package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/sheetpress/internal/block"
)

func TestEszett(t *testing.T) {
	assert.Equal(t, "Strasse", Eszett("Straße"))
	assert.Equal(t, "Fussballstrasse", Eszett("Fußballstraße"))
	assert.Equal(t, "kein Umlaut", Eszett("kein Umlaut"))
}

func TestEszettIdempotent(t *testing.T) {
	once := Eszett("Maß für Maß")
	assert.Equal(t, once, Eszett(once))
}

func TestEszettKeepsMicroSyntax(t *testing.T) {
	in := "Die {{blank:Straße}} ist {{groß|grösser|klein}}."
	assert.Equal(t, "Die {{blank:Strasse}} ist {{gross|grösser|klein}}.", Eszett(in))
}

func TestTransformBlockRecursesColumns(t *testing.T) {
	tree := []block.Block{
		&block.Columns{
			Base:    block.Base{ID: "c1", Type: block.KindColumns},
			Columns: 2,
			Children: [][]block.Block{
				{
					&block.Columns{
						Base:    block.Base{ID: "c2", Type: block.KindColumns},
						Columns: 1,
						Children: [][]block.Block{
							{&block.Text{Base: block.Base{ID: "t1", Type: block.KindText}, Content: "Gruß"}},
						},
					},
				},
				{&block.Heading{Base: block.Base{ID: "h1", Type: block.KindHeading}, Content: "Maße", Level: 2}},
			},
		},
	}
	out := TransformBlocks(tree)

	outer := out[0].(*block.Columns)
	inner := outer.Children[0][0].(*block.Columns)
	assert.Equal(t, "Gruss", inner.Children[0][0].(*block.Text).Content)
	assert.Equal(t, "Masse", outer.Children[1][0].(*block.Heading).Content)

	// Input tree untouched.
	orig := tree[0].(*block.Columns)
	assert.Equal(t, "Gruß", orig.Children[0][0].(*block.Columns).Children[0][0].(*block.Text).Content)
}

func TestTransformBlockItemFields(t *testing.T) {
	mc := &block.MultipleChoice{
		Base:     block.Base{ID: "m1", Type: block.KindMultipleChoice},
		Question: "Wie heißt du?",
		Options: []block.ChoiceOption{
			{ID: "o1", Text: "Fuß", IsCorrect: true},
			{ID: "o2", Text: "Hand"},
		},
	}
	out := TransformBlock(mc).(*block.MultipleChoice)
	assert.Equal(t, "Wie heisst du?", out.Question)
	assert.Equal(t, "Fuss", out.Options[0].Text)
	assert.True(t, out.Options[0].IsCorrect)
	assert.Equal(t, "Fuß", mc.Options[0].Text)
}

func TestTransformSettings(t *testing.T) {
	s := block.DefaultSettings()
	s.HeaderText = "Größen"
	s.FooterText = "Maßstab"
	s.BrandSettings.Teacher = "Frau Weiß"
	out := TransformSettings(s)
	assert.Equal(t, "Grössen", out.HeaderText)
	assert.Equal(t, "Massstab", out.FooterText)
	assert.Equal(t, "Frau Weiss", out.BrandSettings.Teacher)
}

func TestEffectiveValue(t *testing.T) {
	ov := block.Overrides{
		"b1": {"question": "Wie gross bist du?"},
	}
	key := FieldKey{BlockID: "b1", FieldPath: "question"}

	// DE ignores overrides and substitution.
	assert.Equal(t, "Wie groß bist du?", EffectiveValue("Wie groß bist du?", key, ModeDE, ov))
	// CH with an override uses the override verbatim.
	assert.Equal(t, "Wie gross bist du?", EffectiveValue("Wie groß bist du?", key, ModeCH, ov))
	// CH without an override falls back to the automatic rule.
	other := FieldKey{BlockID: "b2", FieldPath: "question"}
	assert.Equal(t, "Wie gross bist du?", EffectiveValue("Wie groß bist du?", other, ModeCH, ov))
}

func TestEffectiveTitle(t *testing.T) {
	ov := block.Overrides{WorksheetKey: {"title": "Masse und Gewichte"}}
	assert.Equal(t, "Masse und Gewichte", EffectiveTitle("Maße und Gewichte", ModeCH, ov))
	assert.Equal(t, "Maße und Gewichte", EffectiveTitle("Maße und Gewichte", ModeDE, ov))
}

func TestApplyOverrideWins(t *testing.T) {
	blocks := []block.Block{
		&block.MultipleChoice{
			Base:     block.Base{ID: "m1", Type: block.KindMultipleChoice},
			Question: "Wie heißt die Straße?",
			Options: []block.ChoiceOption{
				{ID: "o1", Text: "Hauptstraße", IsCorrect: true},
				{ID: "o2", Text: "Gasse"},
			},
		},
	}
	ov := block.Overrides{
		"m1": {"options.0.text": "Hauptgasse"},
	}
	out := Apply(blocks, ov)
	require.Len(t, out, 1)
	mc := out[0].(*block.MultipleChoice)
	// The untouched field got the automatic substitution.
	assert.Equal(t, "Wie heisst die Strasse?", mc.Question)
	// The overridden field carries the authored text verbatim.
	assert.Equal(t, "Hauptgasse", mc.Options[0].Text)
	assert.True(t, mc.Options[0].IsCorrect)
}

func TestApplyStaleOverrideIgnored(t *testing.T) {
	blocks := []block.Block{
		&block.Text{Base: block.Base{ID: "t1", Type: block.KindText}, Content: "Gruß"},
	}
	ov := block.Overrides{
		"gone":        {"content": "x"},
		"t1":          {"items.7.text": "x"},
		"_worksheet":  {"title": "ignored here"},
	}
	out := Apply(blocks, ov)
	require.Len(t, out, 1)
	assert.Equal(t, "Gruss", out[0].(*block.Text).Content)
}

func TestApplyOverrideInsideColumns(t *testing.T) {
	blocks := []block.Block{
		&block.Columns{
			Base:    block.Base{ID: "c1", Type: block.KindColumns},
			Columns: 1,
			Children: [][]block.Block{
				{&block.Text{Base: block.Base{ID: "t1", Type: block.KindText}, Content: "Große Straße"}},
			},
		},
	}
	ov := block.Overrides{"t1": {"content": "Grosse Gasse"}}
	out := Apply(blocks, ov)
	col := out[0].(*block.Columns)
	assert.Equal(t, "Grosse Gasse", col.Children[0][0].(*block.Text).Content)
}

func TestValidateReportsStaleEntries(t *testing.T) {
	blocks := []block.Block{
		&block.Text{Base: block.Base{ID: "t1", Type: block.KindText}, Content: "ok"},
	}
	ov := block.Overrides{
		"t1":         {"content": "x", "nope": "y"},
		"gone":       {"content": "z"},
		WorksheetKey: {"title": "fine"},
	}
	stale := Validate(blocks, ov)
	assert.ElementsMatch(t, []string{"t1.nope", "gone.content"}, stale)
}

func TestEszettAnyGenericWalk(t *testing.T) {
	in := map[string]any{
		"a": "Straße",
		"b": []any{"Maß", map[string]any{"c": "groß"}},
		"n": 3.5,
	}
	out := EszettAny(in).(map[string]any)
	assert.Equal(t, "Strasse", out["a"])
	assert.Equal(t, "Mass", out["b"].([]any)[0])
	assert.Equal(t, "gross", out["b"].([]any)[1].(map[string]any)["c"])
	assert.Equal(t, 3.5, out["n"])
}
