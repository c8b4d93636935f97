package gemini

import (
	"bytes"
	"fmt"
	"text/template"
)

const analysisPrompt = `You are a design systems engineer. Measure the reference image.
Return only JSON with these fields, all values in CSS pixels:
{"spacing": [numbers], "borderRadius": [numbers], "strokeWidth": [numbers],
 "fontFamilies": [strings], "fontSizes": [numbers], "fontWeights": [integers],
 "mood": "one or two words"}`

const namePrompt = `Suggest a short evocative name (two or three words) for the visual style
of the attached image.{{if .CurrentName}} Its current name is "{{.CurrentName}}", which is a placeholder.{{end}}
{{- if .Colors}} The dominant colors are {{range $i, $c := .Colors}}{{if $i}}, {{end}}{{$c}}{{end}}.{{end}}
Do not use the words "Untitled", "Style" or "Imported". Return only JSON: {"name": "..."}`

const assetPrompt = `Render a clean {{.Kind}} sheet for a design system.
{{- if .Colors}} Use exactly these colors: {{range $i, $c := .Colors}}{{if $i}}, {{end}}{{$c}}{{end}}.{{end}}
{{- if .Mood}} The overall mood is {{.Mood}}.{{end}} Flat background, no text other than labels.`

var (
	nameTemplate  = template.Must(template.New("name").Parse(namePrompt))
	assetTemplate = template.Must(template.New("asset").Parse(assetPrompt))
)

func render(tmpl *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s prompt template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
