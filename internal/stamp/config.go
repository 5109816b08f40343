package stamp

// Config collects every layout and payload constant the composer uses. The
// value is handed to NewComposer once; there is no package-level mutable
// state.
type Config struct {
	// QRBoxSize is the pixel width of one QR module at working scale.
	QRBoxSize int
	// Font sizes in pixels at target resolution.
	FontSizeNormal int
	FontSizeBold   int
	// ScaleFactor is the internal supersampling factor for anti-aliasing.
	ScaleFactor int
	// Vertical gaps between text lines, in target pixels.
	GapCaptionName int
	GapNameLines   int
	GapFooter      int
	// TextOffsetY is the vertical offset of the text block from the canvas top.
	TextOffsetY int
	// TextPadding is the horizontal padding around the text block.
	TextPadding int

	// VerifyURL and SoftwareTag are baked into the QR audit payload.
	VerifyURL   string
	SoftwareTag string
}

// DefaultConfig returns the stock stamp geometry. Every field may be
// overridden before constructing the composer.
func DefaultConfig() Config {
	return Config{
		QRBoxSize:      12,
		FontSizeNormal: 60,
		FontSizeBold:   120,
		ScaleFactor:    4,
		GapCaptionName: 2,
		GapNameLines:   15,
		GapFooter:      80,
		TextOffsetY:    120,
		TextPadding:    8,
		VerifyURL:      "https://www.firmadigital.gob.ec",
		SoftwareTag:    "FirmaEC 4.0.1",
	}
}
