// Package render turns estimate Markdown into a printable PDF.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
@page { margin: 1cm; }
body {
	font-family: 'Inter', 'Helvetica Neue', Arial, sans-serif;
	font-size: 12pt;
	line-height: 1.4;
	color: black;
	margin: 0;
	padding: 0.5cm;
}
h1 {
	font-size: 18pt;
	font-weight: bold;
	color: black;
	text-align: center;
	margin-bottom: 15px;
}
h3 {
	font-size: 16pt;
	font-weight: bold;
	color: black;
	margin-top: 15px;
	margin-bottom: 10px;
}
p, li { margin: 3px 0; color: black; }
hr { border: 0; border-top: 1px solid #ccc; opacity: 0.5; margin: 10px 0; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 6px; text-align: left; }
</style>
</head>
<body>
<h1>{{.Heading}}</h1>
{{.Body}}
</body>
</html>
`))

// BuildHTML renders md below a centred heading as a standalone HTML page.
func BuildHTML(heading, md string) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(md), &body); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}

	var page bytes.Buffer
	err := pageTemplate.Execute(&page, struct {
		Heading string
		Body    template.HTML
	}{
		Heading: heading,
		//nolint:gosec // goldmark escapes raw HTML unless WithUnsafe is set
		Body: template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("execute page template: %w", err)
	}
	return page.String(), nil
}
