package doctree

// TOCEntry is a heading candidate supplied by the source document's own
// outline (PDF bookmarks, markdown headings, docx heading styles).
type TOCEntry struct {
	Level int    `json:"level"`
	Title string `json:"title"`
}

// Page is one physical page of extracted text. Number is 1-based.
type Page struct {
	Number int        `json:"number"`
	Text   string     `json:"text"`
	TOC    []TOCEntry `json:"toc,omitempty"`
}
