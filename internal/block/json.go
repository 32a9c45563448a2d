package block

import (
	"encoding/json"
	"fmt"
)

// List is a JSON-decodable slice of the Block union. Encoding works through
// the concrete structs; decoding dispatches on the "type" envelope field.
type List []Block

func (l *List) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make([]Block, 0, len(raws))
	for i, raw := range raws {
		b, err := Unmarshal(raw)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, b)
	}
	*l = out
	return nil
}

// columnsJSON exists so Columns.Children decodes through List.
type columnsJSON struct {
	Base
	Columns  int    `json:"columns"`
	Children []List `json:"children"`
}

// Unmarshal decodes a single block from its JSON envelope.
func Unmarshal(data []byte) (Block, error) {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	decode := func(v Block) (Block, error) {
		if err := json.Unmarshal(data, v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", probe.Type, err)
		}
		return v, nil
	}

	switch probe.Type {
	case KindHeading:
		return decode(&Heading{})
	case KindText:
		return decode(&Text{})
	case KindImage:
		return decode(&Image{})
	case KindImageCards:
		return decode(&ImageCards{})
	case KindTextCards:
		return decode(&TextCards{})
	case KindSpacer:
		return decode(&Spacer{})
	case KindDivider:
		return decode(&Divider{})
	case KindMultipleChoice:
		return decode(&MultipleChoice{})
	case KindFillInBlank:
		return decode(&FillInBlank{})
	case KindMatching:
		return decode(&Matching{})
	case KindTwoColumnFill:
		return decode(&TwoColumnFill{})
	case KindGlossary:
		return decode(&Glossary{})
	case KindOpenResponse:
		return decode(&OpenResponse{})
	case KindWordBank:
		return decode(&WordBank{})
	case KindNumberLine:
		return decode(&NumberLine{})
	case KindColumns:
		var cj columnsJSON
		if err := json.Unmarshal(data, &cj); err != nil {
			return nil, fmt.Errorf("decode columns: %w", err)
		}
		children := make([][]Block, len(cj.Children))
		for i, col := range cj.Children {
			children[i] = col
		}
		return &Columns{Base: cj.Base, Columns: cj.Columns, Children: children}, nil
	case KindTrueFalseMatrix:
		return decode(&TrueFalseMatrix{})
	case KindArticleTraining:
		return decode(&ArticleTraining{})
	case KindOrderItems:
		return decode(&OrderItems{})
	case KindInlineChoices:
		return decode(&InlineChoices{})
	case KindWordSearch:
		return decode(&WordSearch{})
	case KindSortingCategories:
		return decode(&SortingCategories{})
	case KindUnscrambleWords:
		return decode(&UnscrambleWords{})
	case KindFixSentences:
		return decode(&FixSentences{})
	case KindCompleteSentences:
		return decode(&CompleteSentences{})
	case KindVerbTable:
		return decode(&VerbTable{})
	case "":
		return nil, fmt.Errorf("block missing type field")
	default:
		return nil, fmt.Errorf("unknown block type %q", probe.Type)
	}
}

// MarshalJSON for Columns routes Children back through the envelope form.
func (c *Columns) MarshalJSON() ([]byte, error) {
	children := make([]List, len(c.Children))
	for i, col := range c.Children {
		children[i] = col
	}
	return json.Marshal(columnsJSON{Base: c.Base, Columns: c.Columns, Children: children})
}
