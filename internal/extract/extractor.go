package extract

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/truthgauge/internal/model"
)

// Declared media types accepted by the extractor
const (
	MediaPDF      = "application/pdf"
	MediaDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaDOC      = "application/msword"
	MediaPNG      = "image/png"
	MediaJPEG     = "image/jpeg"
	MediaJPG      = "image/jpg"
	MediaText     = "text/plain"
	MediaMarkdown = "text/markdown"
	MediaHTML     = "text/html"
)

// OCR recognizes text in a raster image
type OCR interface {
	Recognize(ctx context.Context, data []byte, mediaType string) (string, error)
}

// Extractor decodes uploaded bytes into plain text, dispatching on the
// caller's declared media type. Content is never sniffed.
type Extractor struct {
	ocr OCR
}

// NewExtractor creates an extractor. ocr may be nil, in which case images
// fail with ExtractionFailed.
func NewExtractor(ocr OCR) *Extractor {
	return &Extractor{ocr: ocr}
}

// SupportedMediaTypes lists every declared type Extract accepts
func SupportedMediaTypes() []string {
	return []string{MediaPDF, MediaDOCX, MediaDOC, MediaPNG, MediaJPEG, MediaJPG, MediaText, MediaMarkdown, MediaHTML}
}

// NormalizeMediaType lowercases a declared type and drops its parameters
func NormalizeMediaType(declared string) string {
	declared = strings.TrimSpace(declared)
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		return mt
	}
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = declared[:i]
	}
	return strings.ToLower(strings.TrimSpace(declared))
}

// Extract decodes data according to declaredMediaType
func (e *Extractor) Extract(ctx context.Context, data []byte, declaredMediaType string) (model.ExtractedDocument, error) {
	mediaType := NormalizeMediaType(declaredMediaType)
	start := time.Now()

	var (
		text string
		err  error
	)
	switch mediaType {
	case MediaPDF:
		text, err = extractPDF(data)
	case MediaDOCX:
		text, err = extractDOCX(data)
	case MediaDOC:
		text, err = extractDOC(data)
	case MediaPNG, MediaJPEG, MediaJPG:
		text, err = e.recognize(ctx, data, mediaType)
	case MediaText, MediaMarkdown:
		text = decodeText(data)
	case MediaHTML:
		text, _ = ArticleText(string(data), "")
	default:
		return model.ExtractedDocument{}, model.NewError(model.KindUnsupportedFormat,
			fmt.Sprintf("unsupported media type %q", declaredMediaType), nil)
	}

	if err != nil {
		if ctxErr := model.ContextError(ctx, "extract"); ctxErr != nil {
			return model.ExtractedDocument{}, ctxErr
		}
		return model.ExtractedDocument{}, model.NewError(model.KindExtractionFailed, mediaType, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return model.ExtractedDocument{}, model.NewError(model.KindExtractionFailed,
			fmt.Sprintf("no text recovered from %s", mediaType), nil)
	}

	slog.Debug("extracted document",
		"media_type", mediaType,
		"input_bytes", len(data),
		"text_chars", utf8.RuneCountInString(text),
		"elapsed", time.Since(start))

	return model.ExtractedDocument{Text: text, SourceMediaType: mediaType}, nil
}

func (e *Extractor) recognize(ctx context.Context, data []byte, mediaType string) (string, error) {
	if e.ocr == nil {
		return "", fmt.Errorf("no OCR backend configured")
	}
	return e.ocr.Recognize(ctx, data, mediaType)
}

// decodeText returns data as UTF-8, replacing invalid sequences
func decodeText(data []byte) string {
	s := string(data)
	s = strings.TrimPrefix(s, "\ufeff")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return s
}
