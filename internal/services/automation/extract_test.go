package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMetadata_TitleTag(t *testing.T) {
	html := `<html><head><title>Example Domain</title>
		<meta name="description" content="An example page"></head>
		<body><h1>Heading</h1></body></html>`

	meta := ExtractMetadata(html)
	assert.Equal(t, "Example Domain", meta.Title)
	assert.Equal(t, "An example page", meta.Description)
}

func TestExtractMetadata_OpenGraphFallback(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="OG Title">
		<meta property="og:description" content="OG description">
		</head><body><h1>Heading</h1></body></html>`

	meta := ExtractMetadata(html)
	assert.Equal(t, "OG Title", meta.Title)
	assert.Equal(t, "OG description", meta.Description)
}

func TestExtractMetadata_HeadingFallback(t *testing.T) {
	html := `<html><head></head><body><h1>  Only Heading  </h1></body></html>`

	meta := ExtractMetadata(html)
	assert.Equal(t, "Only Heading", meta.Title)
	assert.Empty(t, meta.Description)
}

func TestExtractMetadata_NothingToExtract(t *testing.T) {
	meta := ExtractMetadata(`<html><body><p>no title here</p></body></html>`)
	assert.Empty(t, meta.Title)
	assert.Empty(t, meta.Description)
}

func TestExtractMetadata_EmptyTitlePrefersFallback(t *testing.T) {
	html := `<html><head><title>   </title>
		<meta property="og:title" content="Fallback"></head><body></body></html>`

	meta := ExtractMetadata(html)
	assert.Equal(t, "Fallback", meta.Title)
}
