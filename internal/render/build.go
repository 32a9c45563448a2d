package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/local/sheetpress/internal/assets"
	"github.com/local/sheetpress/internal/block"
	"github.com/local/sheetpress/internal/richtext"
	"github.com/local/sheetpress/internal/seeded"
)

// BuildDoc lowers a worksheet into the renderer contract. All randomized
// exercise layouts (matching columns, item orders, scrambles, choice
// orders) derive from block and item IDs, so the same worksheet always
// produces the same PDF. The loader resolves images; pass nil to skip them.
func BuildDoc(ctx context.Context, doc block.Document, mode Mode, loader *assets.Loader) Doc {
	s := doc.Settings
	fonts := s.Fonts()
	bs := s.EffectiveBrandSettings()

	out := Doc{
		Title:       doc.Title,
		PageSize:    s.PageSize,
		Orientation: s.Orientation,
		Margins:     s.Margins,
		FontFamily:  fonts.BodyFont,
		FontSize:    s.FontSize,
		Header: HeaderFooter{
			Show:   s.ShowHeader,
			Left:   firstNonEmpty(s.HeaderText, bs.Organization, doc.Title),
			Right:  firstNonEmpty(bs.HeaderRight, bs.Teacher),
		},
		Footer: HeaderFooter{
			Show:   s.ShowFooter,
			Left:   firstNonEmpty(s.FooterText, bs.FooterLeft),
			Center: firstNonEmpty(bs.FooterCenter, "{page} / {pages}"),
			Right:  bs.FooterRight,
		},
	}
	if out.FontSize <= 0 {
		out.FontSize = 14
	}

	b := &builder{mode: mode, loader: loader, ctx: ctx, bodySize: out.FontSize * 0.75} // px → pt-ish
	for _, blk := range block.Visible(doc.Blocks, block.ModePrint) {
		b.lower(blk)
	}
	out.Boxes = b.boxes
	return out
}

type builder struct {
	ctx      context.Context
	mode     Mode
	loader   *assets.Loader
	bodySize float64
	boxes    []Box
}

func (b *builder) add(boxes ...Box) { b.boxes = append(b.boxes, boxes...) }

func (b *builder) solutions() bool { return b.mode == ModeSolutions }

// richParas lowers an HTML fragment into paragraphs of styled runs.
func (b *builder) richParas(html string, spaceAfter float64) {
	for _, p := range richtext.Flatten(html) {
		b.add(Paragraph{Runs: p.Runs, SpaceAfter: spaceAfter})
	}
}

func (b *builder) instruction(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.add(bold(richtext.StripHTML(text), 0, 2))
}

func (b *builder) image(src string, widthFrac float64, caption string) {
	if src == "" || b.loader == nil {
		return
	}
	uri := src
	if !strings.HasPrefix(src, "data:") {
		uri = b.loader.FetchImage(b.ctx, src)
	}
	if uri == "" {
		return
	}
	b.add(ImageBox{DataURI: uri, WidthFrac: widthFrac, Caption: caption})
}

// lower appends the boxes for one block. The switch is exhaustive over the
// block union; the default branch deliberately renders nothing.
func (b *builder) lower(blk block.Block) {
	switch v := blk.(type) {
	case *block.Heading:
		size := b.bodySize * 2
		switch v.Level {
		case 2:
			size = b.bodySize * 1.5
		case 3:
			size = b.bodySize * 1.25
		}
		b.add(bold(richtext.StripHTML(v.Content), size, 3))

	case *block.Text:
		b.image(v.ImageSrc, v.ImageScale/100, "")
		b.richParas(v.Content, 2)

	case *block.Image:
		frac := v.Width / 100
		if frac <= 0 || frac > 1 {
			frac = 1
		}
		b.image(v.Src, frac, v.Caption)

	case *block.ImageCards:
		for _, it := range v.Items {
			b.image(it.Src, 1/float64(clampColumns(v.Columns)), it.Text)
			if v.ShowWritingLines {
				b.add(WritingLines{Count: maxInt(v.WritingLinesCount, 1)})
			}
		}
		if v.ShowWordBank && !b.solutions() {
			b.wordBank(v.ID, imageCardTexts(v.Items))
		}

	case *block.TextCards:
		cols := clampColumns(v.Columns)
		b.add(cardTable(v.Items, cols, v.TextBold))
		if v.ShowWordBank && !b.solutions() {
			b.wordBank(v.ID, textCardTexts(v.Items))
		}

	case *block.Spacer:
		b.add(SpacerBox{Height: v.Height * pxToMM})

	case *block.Divider:
		b.add(Rule{Style: v.Style})

	case *block.Columns:
		// The PDF flow is single-column; column children render in
		// sequence, left column first.
		for _, col := range v.Children {
			for _, child := range col {
				if block.VisibleIn(child, block.ModePrint) {
					b.lower(child)
				}
			}
		}

	case *block.MultipleChoice:
		b.instruction(v.Question)
		for _, o := range v.Options {
			marker := "( )"
			runs := []richtext.Run{{Text: marker + " " + o.Text}}
			if b.solutions() && o.IsCorrect {
				runs = []richtext.Run{{Text: "(x) " + o.Text, Style: richtext.Style{Bold: true}}}
			}
			b.add(Paragraph{Runs: runs, Indent: 4, SpaceAfter: 1})
		}
		b.gap()

	case *block.FillInBlank:
		text := richtext.StripHTML(v.Content)
		if b.solutions() {
			b.add(Paragraph{Runs: solvedBlankRuns(text), SpaceAfter: 2})
		} else {
			b.add(plain(blankRuleText(text), 0, 2))
		}

	case *block.Matching:
		b.instruction(v.Instruction)
		rights := seeded.Shuffle(pairsRight(v.Pairs), v.ID)
		rows := make([][]Cell, len(v.Pairs))
		for i, p := range v.Pairs {
			rows[i] = []Cell{
				{Text: fmt.Sprintf("%d. %s", i+1, p.Left)},
				{Text: fmt.Sprintf("%s. %s", letter(i), rights[i])},
			}
		}
		b.add(Table{Widths: []float64{0.5, 0.5}, Rows: rows})
		if b.solutions() {
			b.add(plain(matchingKey(v.Pairs, rights), 0, 2))
		}
		b.gap()

	case *block.TwoColumnFill:
		b.instruction(v.Instruction)
		rows := make([][]Cell, len(v.Items))
		for i, it := range v.Items {
			left, right := it.Left, it.Right
			if !b.solutions() {
				if v.FillSide == "left" {
					left = ""
				} else {
					right = ""
				}
			}
			rows[i] = []Cell{{Text: left, Bold: b.solutions() && v.FillSide == "left"},
				{Text: right, Bold: b.solutions() && v.FillSide != "left"}}
		}
		b.add(Table{Widths: ratioWidths(v.ColRatio), Rows: rows})
		if v.ShowWordBank && !b.solutions() {
			b.wordBank(v.ID, fillAnswers(v))
		}
		b.gap()

	case *block.Glossary:
		b.instruction(v.Instruction)
		rows := make([][]Cell, len(v.Pairs))
		for i, p := range v.Pairs {
			rows[i] = []Cell{{Text: p.Term, Bold: true}, {Text: p.Definition}}
		}
		b.add(Table{Widths: []float64{0.35, 0.65}, Rows: rows})
		b.gap()

	case *block.OpenResponse:
		b.instruction(v.Question)
		b.add(WritingLines{Count: maxInt(v.Lines, 1)})
		b.gap()

	case *block.WordBank:
		b.wordBank(v.ID, v.Words)

	case *block.NumberLine:
		b.add(numberLineTable(v))
		b.gap()

	case *block.TrueFalseMatrix:
		b.instruction(v.Instruction)
		header := firstNonEmpty(v.StatementColumnHeader, "Aussage")
		rows := [][]Cell{{{Text: header, Bold: true}, {Text: "R", Bold: true, Align: "C"}, {Text: "F", Bold: true, Align: "C"}}}
		for _, st := range v.Statements {
			r, f := "", ""
			if b.solutions() {
				if st.CorrectAnswer {
					r = "X"
				} else {
					f = "X"
				}
			}
			rows = append(rows, []Cell{{Text: st.Text}, {Text: r, Align: "C"}, {Text: f, Align: "C"}})
		}
		b.add(Table{Widths: []float64{0.7, 0.15, 0.15}, Rows: rows, HeaderRow: true})
		b.gap()

	case *block.ArticleTraining:
		b.instruction(v.Instruction)
		for _, it := range v.Items {
			text := "der / die / das  " + it.Text
			if b.solutions() {
				text = it.CorrectArticle + " " + it.Text
			}
			b.add(Paragraph{Runs: []richtext.Run{{Text: text, Style: richtext.Style{Bold: b.solutions()}}}, Indent: 4, SpaceAfter: 1})
			if v.ShowWritingLine && !b.solutions() {
				b.add(WritingLines{Count: 1})
			}
		}
		b.gap()

	case *block.OrderItems:
		b.instruction(v.Instruction)
		items := v.Items
		if !b.solutions() {
			items = seeded.Shuffle(v.Items, v.ID)
		} else {
			items = orderedItems(v.Items)
		}
		for i, it := range items {
			prefix := "___"
			if b.solutions() {
				prefix = fmt.Sprintf("%d.", i+1)
			}
			b.add(Paragraph{Runs: []richtext.Run{{Text: prefix + "  " + it.Text}}, Indent: 4, SpaceAfter: 1})
		}
		b.gap()

	case *block.InlineChoices:
		for _, it := range richtext.MigrateInlineChoices(v) {
			b.add(Paragraph{Runs: b.inlineChoiceRuns(it), SpaceAfter: 2})
		}
		b.gap()

	case *block.WordSearch:
		grid := v.Grid
		if len(grid) > 0 {
			b.add(LetterGrid{Cells: grid})
		}
		if v.ShowWordList {
			b.add(plain(strings.Join(v.Words, "   "), 0, 2))
		}
		b.gap()

	case *block.SortingCategories:
		b.instruction(v.Instruction)
		if b.solutions() {
			for _, cat := range v.Categories {
				b.add(bold(cat.Label, 0, 1))
				b.add(plain(strings.Join(categoryItems(cat, v.Items), ", "), 0, 2))
			}
		} else {
			pool := seeded.Shuffle(sortingTexts(v.Items), v.ID)
			b.add(plain(strings.Join(pool, "   "), 0, 2))
			for _, cat := range v.Categories {
				b.add(bold(cat.Label, 0, 1))
				b.add(WritingLines{Count: writingLinesFor(len(v.Items), len(v.Categories), v.ShowWritingLines)})
			}
		}
		b.gap()

	case *block.UnscrambleWords:
		b.instruction(v.Instruction)
		for _, w := range v.Words {
			if b.solutions() {
				b.add(bold(w.Word, 0, 1))
				continue
			}
			scrambled := seeded.Scramble(w.Word, v.KeepFirstLetter, v.LowercaseAll, seeded.ItemSeed(v.ID, w.ID))
			b.add(plain(scrambled, 0, 0))
			b.add(WritingLines{Count: 1})
		}
		b.gap()

	case *block.FixSentences:
		b.instruction(v.Instruction)
		for _, s := range v.Sentences {
			if b.solutions() {
				b.add(bold(strings.ReplaceAll(s.Sentence, " | ", " "), 0, 1))
				continue
			}
			parts := seeded.Shuffle(strings.Split(s.Sentence, " | "), v.ID+s.ID)
			b.add(plain(strings.Join(parts, "  /  "), 0, 0))
			b.add(WritingLines{Count: 1})
		}
		b.gap()

	case *block.CompleteSentences:
		b.instruction(v.Instruction)
		for _, s := range v.Sentences {
			b.add(plain(s.Beginning+" ...", 0, 0))
			if !b.solutions() {
				b.add(WritingLines{Count: 1})
			}
		}
		b.gap()

	case *block.VerbTable:
		b.add(bold(v.Verb, b.bodySize*1.25, 2))
		b.add(bold("Singular", 0, 1))
		b.add(verbTable(v.SingularRows, v, b.solutions()))
		b.add(bold("Plural", 0, 1))
		b.add(verbTable(v.PluralRows, v, b.solutions()))
		b.gap()

	default:
	}
}

// gap closes an exercise with breathing room, mirroring the stacked block
// spacing of the preview.
func (b *builder) gap() { b.add(SpacerBox{Height: 4}) }

func (b *builder) wordBank(blockID string, words []string) {
	if len(words) == 0 {
		return
	}
	shuffled := seeded.Shuffle(words, blockID+"-bank")
	b.add(Table{Widths: []float64{1}, Rows: [][]Cell{{{Text: strings.Join(shuffled, "   "), Align: "C"}}}})
	b.add(SpacerBox{Height: 2})
}

func (b *builder) inlineChoiceRuns(it block.InlineChoiceItem) []richtext.Run {
	var runs []richtext.Run
	for _, seg := range richtext.ParseChoiceSegments(it.Content) {
		if seg.Kind == richtext.SegmentText {
			if seg.Value != "" {
				runs = append(runs, richtext.Run{Text: seg.Value})
			}
			continue
		}
		if b.solutions() {
			if len(seg.Options) > 0 {
				runs = append(runs, richtext.Run{Text: seg.Options[0], Style: richtext.Style{Bold: true, Underline: true}})
			}
			continue
		}
		shuffled := seeded.ShuffleIndexed(seg.Options, seeded.ItemSeed(it.ID, "choices"))
		opts := make([]string, len(shuffled))
		for i, o := range shuffled {
			opts[i] = o.Item
		}
		runs = append(runs, richtext.Run{Text: "[ " + strings.Join(opts, " / ") + " ]"})
	}
	return runs
}

// ─── lowering helpers ───────────────────────────────────────

const pxToMM = 25.4 / 96.0

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func clampColumns(n int) int {
	if n < 2 {
		return 2
	}
	if n > 4 {
		return 4
	}
	return n
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func letter(i int) string {
	return string(rune('A' + i%26))
}

// blankRuleText replaces each gap with an answer-sized rule.
func blankRuleText(text string) string {
	var sb strings.Builder
	rest := text
	for {
		answers := richtext.Blanks(rest)
		if len(answers) == 0 {
			sb.WriteString(rest)
			return sb.String()
		}
		marker := "{{blank:" + answers[0] + "}}"
		idx := strings.Index(rest, marker)
		sb.WriteString(rest[:idx])
		sb.WriteString(strings.Repeat("_", maxInt(len([]rune(answers[0]))+4, 8)))
		rest = rest[idx+len(marker):]
	}
}

// solvedBlankRuns renders gaps with their answers emphasized.
func solvedBlankRuns(text string) []richtext.Run {
	var runs []richtext.Run
	rest := text
	for {
		answers := richtext.Blanks(rest)
		if len(answers) == 0 {
			if rest != "" {
				runs = append(runs, richtext.Run{Text: rest})
			}
			return runs
		}
		marker := "{{blank:" + answers[0] + "}}"
		idx := strings.Index(rest, marker)
		if idx > 0 {
			runs = append(runs, richtext.Run{Text: rest[:idx]})
		}
		runs = append(runs, richtext.Run{Text: answers[0], Style: richtext.Style{Bold: true, Underline: true}})
		rest = rest[idx+len(marker):]
	}
}

func pairsRight(pairs []block.MatchingPair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Right
	}
	return out
}

// matchingKey writes "1 → C, 2 → A, ..." for the shuffled right column.
func matchingKey(pairs []block.MatchingPair, shuffled []string) string {
	pos := map[string]int{}
	for i, r := range shuffled {
		if _, seen := pos[r]; !seen {
			pos[r] = i
		}
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%d - %s", i+1, letter(pos[p.Right]))
	}
	return "Lösung: " + strings.Join(parts, ", ")
}

func ratioWidths(ratio string) []float64 {
	switch ratio {
	case "1-2":
		return []float64{1.0 / 3, 2.0 / 3}
	case "2-1":
		return []float64{2.0 / 3, 1.0 / 3}
	default:
		return []float64{0.5, 0.5}
	}
}

func fillAnswers(v *block.TwoColumnFill) []string {
	out := make([]string, len(v.Items))
	for i, it := range v.Items {
		if v.FillSide == "left" {
			out[i] = it.Left
		} else {
			out[i] = it.Right
		}
	}
	return out
}

func imageCardTexts(items []block.ImageCardItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.Text != "" {
			out = append(out, it.Text)
		}
	}
	return out
}

func textCardTexts(items []block.TextCardItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it.Text != "" {
			out = append(out, it.Text)
		}
	}
	return out
}

func cardTable(items []block.TextCardItem, cols int, boldText bool) Table {
	widths := make([]float64, cols)
	for i := range widths {
		widths[i] = 1 / float64(cols)
	}
	var rows [][]Cell
	for start := 0; start < len(items); start += cols {
		row := make([]Cell, cols)
		for c := 0; c < cols; c++ {
			if start+c < len(items) {
				it := items[start+c]
				text := it.Text
				if it.Caption != "" {
					text += "\n" + it.Caption
				}
				row[c] = Cell{Text: text, Bold: boldText, Align: "C"}
			}
		}
		rows = append(rows, row)
	}
	return Table{Widths: widths, Rows: rows}
}

func sortingTexts(items []block.SortingItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

func categoryItems(cat block.SortingCategory, items []block.SortingItem) []string {
	byID := map[string]string{}
	for _, it := range items {
		byID[it.ID] = it.Text
	}
	var out []string
	for _, id := range cat.CorrectItems {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

func writingLinesFor(items, categories int, explicit bool) int {
	if !explicit {
		return 3
	}
	if categories == 0 {
		return 3
	}
	return maxInt((items+categories-1)/categories, 2)
}

func orderedItems(items []block.OrderItem) []block.OrderItem {
	out := make([]block.OrderItem, len(items))
	copy(out, items)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CorrectPosition < out[i].CorrectPosition {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func numberLineTable(v *block.NumberLine) Table {
	if v.Step <= 0 || v.Max <= v.Min {
		return Table{Widths: []float64{1}, Rows: [][]Cell{{{Text: ""}}}}
	}
	var labels []string
	marked := map[float64]bool{}
	for _, m := range v.Markers {
		marked[m] = true
	}
	count := 0
	for x := v.Min; x <= v.Max+1e-9 && count < 40; x += v.Step {
		if len(v.Markers) == 0 || marked[x] {
			labels = append(labels, trimFloat(x))
		} else {
			labels = append(labels, "")
		}
		count++
	}
	widths := make([]float64, len(labels))
	cells := make([]Cell, len(labels))
	for i, l := range labels {
		widths[i] = 1 / float64(len(labels))
		cells[i] = Cell{Text: l, Align: "C"}
	}
	return Table{Widths: widths, Rows: [][]Cell{cells}}
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

func verbTable(rows []block.VerbTableRow, v *block.VerbTable, solutions bool) Table {
	widths := []float64{0.4, 0.6}
	if v.SplitConjugation {
		widths = []float64{0.34, 0.33, 0.33}
	}
	out := make([][]Cell, len(rows))
	for i, r := range rows {
		person := r.Pronoun
		if person == "" {
			person = r.Person
		}
		if r.Detail != "" {
			person += " (" + r.Detail + ")"
		}
		conj := cellValue(r.Conjugation, r.ShowOverride, v.ShowConjugations, solutions)
		row := []Cell{{Text: person}, {Text: conj, Bold: solutions && conj != ""}}
		if v.SplitConjugation {
			conj2 := cellValue(r.Conjugation2, r.ShowOverride2, v.ShowConjugations, solutions)
			row = append(row, Cell{Text: conj2, Bold: solutions && conj2 != ""})
		}
		out[i] = row
	}
	return Table{Widths: widths, Rows: out}
}

// cellValue decides whether a conjugation cell shows its text or stays an
// empty fill-in cell. Per-row overrides beat the block-level toggle;
// solutions always show everything.
func cellValue(text, override string, show, solutions bool) string {
	if solutions {
		return text
	}
	switch override {
	case "show":
		return text
	case "hide":
		return ""
	}
	if show {
		return text
	}
	return ""
}
