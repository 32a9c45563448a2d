package extract

import (
	"strings"
	"testing"

	"github.com/local/sheetpress/internal/block"
)

func TestBlockFillInBlankExpandsAnswers(t *testing.T) {
	b := &block.FillInBlank{
		Base:    block.Base{ID: "f1", Type: block.KindFillInBlank},
		Content: "Die {{blank:Katze}} jagt die {{blank:Maus}}.",
	}
	got := Block(b)
	if got != "Die Katze jagt die Maus." {
		t.Fatalf("got %q", got)
	}
}

func TestBlockInlineChoicesCollapseToCorrect(t *testing.T) {
	b := &block.InlineChoices{
		Base: block.Base{ID: "ic", Type: block.KindInlineChoices},
		Items: []block.InlineChoiceItem{
			{ID: "1", Content: "Er {{geht|gehen}} heim."},
		},
	}
	if got := Block(b); got != "Er geht heim." {
		t.Fatalf("got %q", got)
	}
}

func TestBlockStripsHTML(t *testing.T) {
	b := &block.Text{Base: block.Base{ID: "t", Type: block.KindText}, Content: "<p>Hallo <b>Welt</b></p>"}
	if got := Block(b); got != "Hallo Welt" {
		t.Fatalf("got %q", got)
	}
}

func TestBlockLayoutBlocksEmpty(t *testing.T) {
	for _, b := range []block.Block{
		&block.Spacer{Base: block.Base{Type: block.KindSpacer}},
		&block.Divider{Base: block.Base{Type: block.KindDivider}},
	} {
		if got := Block(b); got != "" {
			t.Fatalf("layout block yielded %q", got)
		}
	}
}

func TestBlockColumnsRecurse(t *testing.T) {
	b := &block.Columns{
		Base:    block.Base{ID: "c", Type: block.KindColumns},
		Columns: 2,
		Children: [][]block.Block{
			{&block.Text{Base: block.Base{ID: "a", Type: block.KindText}, Content: "links"}},
			{&block.Text{Base: block.Base{ID: "b", Type: block.KindText}, Content: "rechts"}},
		},
	}
	got := Block(b)
	if !strings.Contains(got, "links") || !strings.Contains(got, "rechts") {
		t.Fatalf("got %q", got)
	}
}

func TestBlockWordSearchListsWordsOnly(t *testing.T) {
	b := &block.WordSearch{
		Base:  block.Base{ID: "ws", Type: block.KindWordSearch},
		Words: []string{"HAUS", "BAUM"},
		Grid:  [][]string{{"X", "Y"}, {"Z", "Q"}},
	}
	got := Block(b)
	if got != "HAUS BAUM" {
		t.Fatalf("got %q", got)
	}
}

func TestDocumentTitleFirst(t *testing.T) {
	doc := block.Document{
		ID:    "d1",
		Title: "Verben",
		Blocks: []block.Block{
			&block.Heading{Base: block.Base{ID: "h", Type: block.KindHeading}, Content: "Kapitel 1"},
		},
	}
	got := Document(doc)
	lines := strings.Split(got, "\n")
	if lines[0] != "Verben" || lines[1] != "Kapitel 1" {
		t.Fatalf("got %q", got)
	}
}
