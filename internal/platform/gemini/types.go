package gemini

// analysisSchema is the JSON shape requested from the model for image analysis.
type analysisSchema struct {
	Spacing      []float64 `json:"spacing"`
	BorderRadius []float64 `json:"borderRadius"`
	StrokeWidth  []float64 `json:"strokeWidth"`
	FontFamilies []string  `json:"fontFamilies"`
	FontSizes    []float64 `json:"fontSizes"`
	FontWeights  []int     `json:"fontWeights"`
	Mood         string    `json:"mood"`
}

// nameSchema is the JSON shape requested from the model for naming.
type nameSchema struct {
	Name string `json:"name"`
}

// promptData is passed to the prompt templates.
type promptData struct {
	CurrentName string
	Kind        string
	Colors      []string
	Mood        string
}
