package model

import "strings"

// InputKind tags the variant of a RawInput
type InputKind string

const (
	InputText InputKind = "text" // Pasted text
	InputFile InputKind = "file" // Uploaded document or image
	InputURL  InputKind = "url"  // Web page to fetch
)

// RawInput is the user's submission. Exactly one variant is populated,
// selected by Kind. Values are created per request and consumed once.
type RawInput struct {
	Kind      InputKind
	Text      string // Kind == InputText
	Bytes     []byte // Kind == InputFile
	MediaType string // Kind == InputFile, declared by the caller
	Filename  string // Kind == InputFile, informational only
	URL       string // Kind == InputURL
}

// TextInput builds a text submission
func TextInput(text string) RawInput {
	return RawInput{Kind: InputText, Text: text}
}

// FileInput builds a file submission with the caller's declared media type
func FileInput(data []byte, mediaType, filename string) RawInput {
	return RawInput{Kind: InputFile, Bytes: data, MediaType: mediaType, Filename: filename}
}

// URLInput builds a URL submission
func URLInput(rawURL string) RawInput {
	return RawInput{Kind: InputURL, URL: strings.TrimSpace(rawURL)}
}

// ExtractedDocument is plain text recovered from a RawInput.
// Text is never empty for a successful extraction.
type ExtractedDocument struct {
	Text            string `json:"text"`
	SourceMediaType string `json:"sourceMediaType"`
	SourceURL       string `json:"sourceUrl,omitempty"`
	Title           string `json:"title,omitempty"`
}
