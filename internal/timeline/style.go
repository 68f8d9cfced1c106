package timeline

type FillKind string

const (
	FillSolid    FillKind = "solid"
	FillGradient FillKind = "gradient"
	FillTexture  FillKind = "texture"
)

type Fill struct {
	Kind FillKind `json:"kind"`
	// Color is used by solid fills.
	Color string `json:"color,omitempty"`
	// Stops and Angle are used by gradient fills.
	Stops []string `json:"stops,omitempty"`
	Angle float64  `json:"angle,omitempty"`
	// TextureURL is used by texture fills.
	TextureURL string `json:"texture_url,omitempty"`
}

type Outline struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type Shadow struct {
	Color   string  `json:"color"`
	Blur    float64 `json:"blur"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

type TextStyle struct {
	FontFamily      string   `json:"font_family,omitempty"`
	FontSize        float64  `json:"font_size,omitempty"`
	FontWeight      int      `json:"font_weight,omitempty"`
	LetterSpacing   float64  `json:"letter_spacing,omitempty"`
	LineHeight      float64  `json:"line_height,omitempty"`
	Fill            *Fill    `json:"fill,omitempty"`
	Outline         *Outline `json:"outline,omitempty"`
	Shadow          *Shadow  `json:"shadow,omitempty"`
	BackgroundColor string   `json:"background_color,omitempty"`
}

// DefaultSubtitleStyle is the caption look applied to synthesized subtitles.
func DefaultSubtitleStyle() TextStyle {
	return TextStyle{
		FontFamily: "Inter",
		FontSize:   48,
		FontWeight: 700,
		LineHeight: 1.2,
		Fill:       &Fill{Kind: FillSolid, Color: "#FFFFFF"},
		Outline:    &Outline{Color: "#000000", Width: 2},
	}
}

func (s TextStyle) clone() TextStyle {
	if s.Fill != nil {
		f := *s.Fill
		f.Stops = append([]string(nil), s.Fill.Stops...)
		s.Fill = &f
	}
	if s.Outline != nil {
		o := *s.Outline
		s.Outline = &o
	}
	if s.Shadow != nil {
		sh := *s.Shadow
		s.Shadow = &sh
	}
	return s
}

// Merge overlays the set fields of override onto s and returns the result.
func (s TextStyle) Merge(override *TextStyle) TextStyle {
	out := s.clone()
	if override == nil {
		return out
	}
	o := override.clone()
	if o.FontFamily != "" {
		out.FontFamily = o.FontFamily
	}
	if o.FontSize != 0 {
		out.FontSize = o.FontSize
	}
	if o.FontWeight != 0 {
		out.FontWeight = o.FontWeight
	}
	if o.LetterSpacing != 0 {
		out.LetterSpacing = o.LetterSpacing
	}
	if o.LineHeight != 0 {
		out.LineHeight = o.LineHeight
	}
	if o.Fill != nil {
		out.Fill = o.Fill
	}
	if o.Outline != nil {
		out.Outline = o.Outline
	}
	if o.Shadow != nil {
		out.Shadow = o.Shadow
	}
	if o.BackgroundColor != "" {
		out.BackgroundColor = o.BackgroundColor
	}
	return out
}
