package block

// Visibility controls in which render mode a block appears.
type Visibility string

const (
	VisibilityBoth   Visibility = "both"
	VisibilityPrint  Visibility = "print"
	VisibilityOnline Visibility = "online"
)

// ViewMode selects between the interactive online view and the print view.
type ViewMode string

const (
	ModePrint  ViewMode = "print"
	ModeOnline ViewMode = "online"
)

// Kind is the block type discriminant carried in the JSON "type" field.
type Kind string

const (
	KindHeading           Kind = "heading"
	KindText              Kind = "text"
	KindImage             Kind = "image"
	KindImageCards        Kind = "image-cards"
	KindTextCards         Kind = "text-cards"
	KindSpacer            Kind = "spacer"
	KindDivider           Kind = "divider"
	KindMultipleChoice    Kind = "multiple-choice"
	KindFillInBlank       Kind = "fill-in-blank"
	KindMatching          Kind = "matching"
	KindTwoColumnFill     Kind = "two-column-fill"
	KindGlossary          Kind = "glossary"
	KindOpenResponse      Kind = "open-response"
	KindWordBank          Kind = "word-bank"
	KindNumberLine        Kind = "number-line"
	KindColumns           Kind = "columns"
	KindTrueFalseMatrix   Kind = "true-false-matrix"
	KindArticleTraining   Kind = "article-training"
	KindOrderItems        Kind = "order-items"
	KindInlineChoices     Kind = "inline-choices"
	KindWordSearch        Kind = "word-search"
	KindSortingCategories Kind = "sorting-categories"
	KindUnscrambleWords   Kind = "unscramble-words"
	KindFixSentences      Kind = "fix-sentences"
	KindCompleteSentences Kind = "complete-sentences"
	KindVerbTable         Kind = "verb-table"
)

// Base carries the fields shared by every block variant.
type Base struct {
	ID         string     `json:"id"`
	Type       Kind       `json:"type"`
	Visibility Visibility `json:"visibility"`
}

// Meta returns the shared block metadata.
func (b Base) Meta() Base { return b }

// Block is the closed union over all worksheet block variants. Every
// concrete type embeds Base; tree-walking code switches exhaustively on the
// concrete type, not on the Kind string.
type Block interface {
	Meta() Base
}

// VisibleIn reports whether a block should be rendered in the given mode.
func VisibleIn(b Block, mode ViewMode) bool {
	switch b.Meta().Visibility {
	case VisibilityBoth, "":
		return true
	case VisibilityPrint:
		return mode == ModePrint
	case VisibilityOnline:
		return mode == ModeOnline
	}
	return false
}

// Visible filters blocks down to those rendered in the given mode.
func Visible(blocks []Block, mode ViewMode) []Block {
	out := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if VisibleIn(b, mode) {
			out = append(out, b)
		}
	}
	return out
}

// ─── Content blocks ─────────────────────────────────────────

type Heading struct {
	Base
	Content string `json:"content"`
	Level   int    `json:"level"` // 1..3
}

// Text holds a rich-text paragraph as an HTML string (the editor is the
// producer; we only flatten it into styled runs at render time).
type Text struct {
	Base
	Content    string  `json:"content"`
	ImageSrc   string  `json:"imageSrc,omitempty"`
	ImageAlign string  `json:"imageAlign,omitempty"` // left|right
	ImageScale float64 `json:"imageScale,omitempty"` // 10-100 percent of width
}

type Image struct {
	Base
	Src     string  `json:"src"`
	Alt     string  `json:"alt"`
	Width   float64 `json:"width,omitempty"`
	Caption string  `json:"caption,omitempty"`
}

type ImageCardItem struct {
	ID   string `json:"id"`
	Src  string `json:"src"`
	Alt  string `json:"alt"`
	Text string `json:"text"`
}

type ImageCards struct {
	Base
	Items             []ImageCardItem `json:"items"`
	Columns           int             `json:"columns"` // 2..4
	ImageAspectRatio  string          `json:"imageAspectRatio,omitempty"`
	ImageScale        float64         `json:"imageScale,omitempty"`
	ShowWritingLines  bool            `json:"showWritingLines"`
	WritingLinesCount int             `json:"writingLinesCount"`
	ShowWordBank      bool            `json:"showWordBank"`
}

type TextCardItem struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Caption string `json:"caption"`
}

type TextCards struct {
	Base
	Items             []TextCardItem `json:"items"`
	Columns           int            `json:"columns"`
	TextSize          string         `json:"textSize,omitempty"` // xs..2xl
	TextAlign         string         `json:"textAlign,omitempty"`
	TextBold          bool           `json:"textBold"`
	TextItalic        bool           `json:"textItalic"`
	ShowBorder        bool           `json:"showBorder"`
	ShowWritingLines  bool           `json:"showWritingLines"`
	WritingLinesCount int            `json:"writingLinesCount"`
	ShowWordBank      bool           `json:"showWordBank"`
}

type Spacer struct {
	Base
	Height float64 `json:"height"` // px
}

type Divider struct {
	Base
	Style string `json:"style"` // solid|dashed|dotted
}

// Columns is the one recursive block: N parallel child block lists, one per
// visual column. Tree walks must recurse into Children.
type Columns struct {
	Base
	Columns  int       `json:"columns"` // 1..4
	Children [][]Block `json:"children"`
}

// ─── Interactive blocks ─────────────────────────────────────

type ChoiceOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type MultipleChoice struct {
	Base
	Question      string         `json:"question"`
	Options       []ChoiceOption `json:"options"`
	AllowMultiple bool           `json:"allowMultiple"`
}

// FillInBlank content marks gaps as {{blank:answer}}.
type FillInBlank struct {
	Base
	Content string `json:"content"`
}

type MatchingPair struct {
	ID    string `json:"id"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

type Matching struct {
	Base
	Instruction  string         `json:"instruction"`
	Pairs        []MatchingPair `json:"pairs"`
	ExtendedRows bool           `json:"extendedRows,omitempty"`
}

type TwoColumnFillItem struct {
	ID    string `json:"id"`
	Left  string `json:"left"`
	Right string `json:"right"`
}

type TwoColumnFill struct {
	Base
	Instruction  string              `json:"instruction"`
	Items        []TwoColumnFillItem `json:"items"`
	FillSide     string              `json:"fillSide"`           // left|right
	ColRatio     string              `json:"colRatio,omitempty"` // 1-1|1-2|2-1
	ExtendedRows bool                `json:"extendedRows,omitempty"`
	ShowWordBank bool                `json:"showWordBank,omitempty"`
}

type GlossaryPair struct {
	ID         string `json:"id"`
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type Glossary struct {
	Base
	Instruction string         `json:"instruction"`
	Pairs       []GlossaryPair `json:"pairs"`
}

type OpenResponse struct {
	Base
	Question string `json:"question"`
	Lines    int    `json:"lines"`
}

type WordBank struct {
	Base
	Words []string `json:"words"`
}

type NumberLine struct {
	Base
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Step    float64   `json:"step"`
	Markers []float64 `json:"markers"`
}

type TrueFalseStatement struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	CorrectAnswer bool   `json:"correctAnswer"`
}

type TrueFalseMatrix struct {
	Base
	Instruction           string               `json:"instruction"`
	StatementColumnHeader string               `json:"statementColumnHeader,omitempty"`
	Statements            []TrueFalseStatement `json:"statements"`
}

type ArticleItem struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	CorrectArticle string `json:"correctArticle"` // der|das|die
}

type ArticleTraining struct {
	Base
	Instruction     string        `json:"instruction"`
	ShowWritingLine bool          `json:"showWritingLine"`
	Items           []ArticleItem `json:"items"`
}

type OrderItem struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	CorrectPosition int    `json:"correctPosition"` // 1-based
}

type OrderItems struct {
	Base
	Instruction string      `json:"instruction"`
	Items       []OrderItem `json:"items"`
}

// InlineChoiceItem content marks gaps as {{correct|wrong1|wrong2}}; the
// first option is the correct one. Legacy {{choice:*correct|wrong}} syntax
// is normalised by richtext.MigrateChoiceSyntax.
type InlineChoiceItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type InlineChoices struct {
	Base
	Items []InlineChoiceItem `json:"items"`
	// Content is the legacy single-string form, one item per line.
	Content string `json:"content,omitempty"`
}

type WordSearch struct {
	Base
	Words        []string   `json:"words"`
	GridCols     int        `json:"gridCols"`
	GridRows     int        `json:"gridRows"`
	GridSize     int        `json:"gridSize,omitempty"` // deprecated, pre cols/rows split
	Grid         [][]string `json:"grid"`
	ShowWordList bool       `json:"showWordList"`
}

// Cols returns the effective column count honouring the legacy GridSize field.
func (w *WordSearch) Cols() int {
	if w.GridCols > 0 {
		return w.GridCols
	}
	if w.GridSize > 0 {
		return w.GridSize
	}
	return 24
}

// Rows returns the effective row count honouring the legacy GridSize field.
func (w *WordSearch) Rows() int {
	if w.GridRows > 0 {
		return w.GridRows
	}
	if w.GridSize > 0 {
		return w.GridSize
	}
	return 12
}

type SortingCategory struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`
	CorrectItems []string `json:"correctItems"`
}

type SortingItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type SortingCategories struct {
	Base
	Instruction      string            `json:"instruction"`
	Categories       []SortingCategory `json:"categories"`
	Items            []SortingItem     `json:"items"`
	ShowWritingLines bool              `json:"showWritingLines"`
}

type UnscrambleWordItem struct {
	ID   string `json:"id"`
	Word string `json:"word"`
}

type UnscrambleWords struct {
	Base
	Instruction     string               `json:"instruction"`
	Words           []UnscrambleWordItem `json:"words"`
	KeepFirstLetter bool                 `json:"keepFirstLetter"`
	LowercaseAll    bool                 `json:"lowercaseAll"`
	ItemOrder       []string             `json:"itemOrder,omitempty"`
}

type FixSentenceItem struct {
	ID       string `json:"id"`
	Sentence string `json:"sentence"` // parts separated by " | "
}

type FixSentences struct {
	Base
	Instruction string            `json:"instruction"`
	Sentences   []FixSentenceItem `json:"sentences"`
}

type CompleteSentenceItem struct {
	ID        string `json:"id"`
	Beginning string `json:"beginning"`
}

type CompleteSentences struct {
	Base
	Instruction string                 `json:"instruction"`
	Sentences   []CompleteSentenceItem `json:"sentences"`
}

type VerbTableRow struct {
	ID            string `json:"id"`
	Person        string `json:"person"`
	Detail        string `json:"detail,omitempty"`
	Pronoun       string `json:"pronoun"`
	Conjugation   string `json:"conjugation"`
	Conjugation2  string `json:"conjugation2,omitempty"`
	ShowOverride  string `json:"showOverride,omitempty"`  // show|hide
	ShowOverride2 string `json:"showOverride2,omitempty"` // show|hide
}

type VerbTable struct {
	Base
	Verb             string         `json:"verb"`
	SplitConjugation bool           `json:"splitConjugation,omitempty"`
	ShowConjugations bool           `json:"showConjugations,omitempty"`
	SingularRows     []VerbTableRow `json:"singularRows"`
	PluralRows       []VerbTableRow `json:"pluralRows"`
}
