package avatarchat

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering the chat page. Templates are split
// into layout, pages, and partials; the partials are what gets re-rendered and pushed over SSE.
//
//go:embed templates/*
var TemplateFS embed.FS

// StaticFS contains the embedded static assets: the page script, stylesheet and the default avatar image.
//
//go:embed static/*
var StaticFS embed.FS
