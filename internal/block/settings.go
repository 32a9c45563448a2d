package block

// Brand selects one of the configured brand skins.
type Brand string

const (
	BrandEdoomio   Brand = "edoomio"
	BrandLingostar Brand = "lingostar"
)

// BrandSettings holds per-document header/footer text slots and the logo.
type BrandSettings struct {
	Logo         string `json:"logo"`
	Organization string `json:"organization"`
	Teacher      string `json:"teacher"`
	HeaderRight  string `json:"headerRight"`
	FooterLeft   string `json:"footerLeft"`
	FooterCenter string `json:"footerCenter"`
	FooterRight  string `json:"footerRight"`
}

// BrandFonts describes the typography a brand resolves to.
type BrandFonts struct {
	BodyFont       string
	HeadlineFont   string
	HeadlineWeight int
	PrimaryColor   string
}

// DefaultBrandSettings mirrors the per-brand defaults shipped with the editor.
var DefaultBrandSettings = map[Brand]BrandSettings{
	BrandEdoomio: {
		Logo: "logo/arbeitsblatt_logo_full_brand.svg",
	},
	BrandLingostar: {
		Logo: "logo/lingostar_logo_icon_flat.svg",
	},
}

// BrandFontTable resolves a brand to its configured fonts.
var BrandFontTable = map[Brand]BrandFonts{
	BrandEdoomio: {
		BodyFont:       "Asap Condensed",
		HeadlineFont:   "Asap Condensed",
		HeadlineWeight: 700,
		PrimaryColor:   "#1a1a1a",
	},
	BrandLingostar: {
		BodyFont:       "Encode Sans",
		HeadlineFont:   "Merriweather",
		HeadlineWeight: 400,
		PrimaryColor:   "#3a4f40",
	},
}

// Margins in millimetres.
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Overrides is the sparse manual Swiss-orthography correction map:
// blockId → fieldPath (dot notation) → override text. The reserved block id
// "_worksheet" addresses document-level fields such as the title.
type Overrides map[string]map[string]string

// Settings is the per-worksheet page/typography/brand configuration.
type Settings struct {
	PageSize         string        `json:"pageSize"`    // a4|letter
	Orientation      string        `json:"orientation"` // portrait|landscape
	Margins          Margins       `json:"margins"`
	ShowHeader       bool          `json:"showHeader"`
	ShowFooter       bool          `json:"showFooter"`
	HeaderText       string        `json:"headerText"`
	FooterText       string        `json:"footerText"`
	FontSize         float64       `json:"fontSize"`
	FontFamily       string        `json:"fontFamily"`
	Brand            Brand         `json:"brand"`
	BrandSettings    BrandSettings `json:"brandSettings"`
	CHOverrides      Overrides     `json:"chOverrides,omitempty"`
	CoverSubtitle    string        `json:"coverSubtitle,omitempty"`
	CoverInfoText    string        `json:"coverInfoText,omitempty"`
	CoverImages      []string      `json:"coverImages,omitempty"`
	CoverImageBorder bool          `json:"coverImageBorder,omitempty"`
}

// DefaultSettings returns the editor defaults for a fresh worksheet.
func DefaultSettings() Settings {
	return Settings{
		PageSize:      "a4",
		Orientation:   "portrait",
		Margins:       Margins{Top: 20, Right: 20, Bottom: 20, Left: 20},
		ShowHeader:    true,
		ShowFooter:    true,
		FontSize:      14,
		FontFamily:    "Asap Condensed",
		Brand:         BrandEdoomio,
		BrandSettings: DefaultBrandSettings[BrandEdoomio],
		CoverSubtitle: "Arbeitsblatt",
	}
}

// EffectiveBrandSettings merges the document's brand settings over the
// brand defaults.
func (s Settings) EffectiveBrandSettings() BrandSettings {
	brand := s.Brand
	if brand == "" {
		brand = BrandEdoomio
	}
	def := DefaultBrandSettings[brand]
	bs := s.BrandSettings
	if bs.Logo == "" {
		bs.Logo = def.Logo
	}
	return bs
}

// Fonts resolves the brand's typography, falling back to edoomio.
func (s Settings) Fonts() BrandFonts {
	if f, ok := BrandFontTable[s.Brand]; ok {
		return f
	}
	return BrandFontTable[BrandEdoomio]
}

// Document is a worksheet snapshot as consumed from the document store.
// The core only reads it; all derived output is recomputed from scratch.
type Document struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Blocks   List     `json:"blocks"`
	Settings Settings `json:"settings"`
}

// ShortID returns the filename prefix used for exported artifacts.
func (d Document) ShortID() string {
	if len(d.ID) > 16 {
		return d.ID[:16]
	}
	return d.ID
}
