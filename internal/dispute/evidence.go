package dispute

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fitstack/fitstack-disputes/internal/domain"
)

// Platform limits for a single representment.
const (
	MaxDocuments    = 8
	MaxDocumentSize = 1 << 20 // 1 MiB
	MaxTotalSize    = 8 << 20 // 8 MiB
)

// Validation reasons. A *ValidationError wraps one of these and domain.ErrValidation.
var (
	ErrTooManyDocuments     = errors.New("too many documents")
	ErrDocumentTooLarge     = errors.New("document too large")
	ErrTotalSizeExceeded    = errors.New("total document size exceeded")
	ErrEmptyNarrative       = errors.New("evidence narrative is empty")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrInvalidDocument      = errors.New("invalid document")
)

// supportedMediaTypes are the formats the platform accepts for evidence.
var supportedMediaTypes = map[string]domain.DocumentType{
	"application/pdf": domain.DocumentPDF,
	"image/tiff":      domain.DocumentTIFF,
	"image/png":       domain.DocumentPNG,
	"image/jpeg":      domain.DocumentJPG,
	"image/gif":       domain.DocumentImage,
}

var mediaTypeAliases = map[string]string{
	"image/tif": "image/tiff",
	"image/jpg": "image/jpeg",
}

var extensionMediaTypes = map[string]string{
	".pdf":  "application/pdf",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// ValidationError describes evidence rejected before any network call.
type ValidationError struct {
	Reason   error
	Document string // offending document, if any
	Detail   string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason.Error())
	if e.Document != "" {
		fmt.Fprintf(&b, " (document %q)", e.Document)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	return []error{domain.ErrValidation, e.Reason}
}

// EvidenceDocument is one supporting file. Content is held in memory so that
// validation sees the real size.
type EvidenceDocument struct {
	Name      string
	Content   []byte
	MediaType string
}

// Size returns the document size in bytes.
func (d EvidenceDocument) Size() int { return len(d.Content) }

// Evidence is a merchant's rebuttal: a narrative plus supporting documents.
type Evidence struct {
	Narrative string
	Documents []EvidenceDocument
}

// NewEvidence builds evidence from a narrative and any number of documents.
func NewEvidence(narrative string, docs ...EvidenceDocument) Evidence {
	return Evidence{Narrative: narrative, Documents: docs}
}

// With returns a copy of ev with doc appended.
func (ev Evidence) With(doc EvidenceDocument) Evidence {
	docs := make([]EvidenceDocument, 0, len(ev.Documents)+1)
	docs = append(docs, ev.Documents...)
	ev.Documents = append(docs, doc)
	return ev
}

// TotalSize returns the combined size of all documents.
func (ev Evidence) TotalSize() int {
	total := 0
	for _, d := range ev.Documents {
		total += d.Size()
	}
	return total
}

// Validate checks the platform limits in order: document count, each
// document's size, aggregate size. It then checks the narrative and media types.
func (ev Evidence) Validate() error {
	if n := len(ev.Documents); n > MaxDocuments {
		return &ValidationError{
			Reason: ErrTooManyDocuments,
			Detail: fmt.Sprintf("%d documents, maximum %d", n, MaxDocuments),
		}
	}

	for _, d := range ev.Documents {
		if d.Size() > MaxDocumentSize {
			return &ValidationError{
				Reason:   ErrDocumentTooLarge,
				Document: d.Name,
				Detail:   fmt.Sprintf("%d bytes, maximum %d", d.Size(), MaxDocumentSize),
			}
		}
	}

	if total := ev.TotalSize(); total > MaxTotalSize {
		return &ValidationError{
			Reason: ErrTotalSizeExceeded,
			Detail: fmt.Sprintf("%d bytes, maximum %d", total, MaxTotalSize),
		}
	}

	if strings.TrimSpace(ev.Narrative) == "" {
		return &ValidationError{Reason: ErrEmptyNarrative}
	}

	for _, d := range ev.Documents {
		if _, ok := supportedMediaTypes[normalizeMediaType(d.MediaType)]; !ok {
			return &ValidationError{
				Reason:   ErrUnsupportedMediaType,
				Document: d.Name,
				Detail:   fmt.Sprintf("%q", d.MediaType),
			}
		}
	}
	return nil
}

// Package validates ev and encodes it into the platform's message payload.
// It performs no I/O.
func Package(ev Evidence, subject string) (domain.MessagePayload, error) {
	if err := ev.Validate(); err != nil {
		return domain.MessagePayload{}, err
	}

	payload := domain.MessagePayload{
		Subject: subject,
		Message: ev.Narrative,
	}
	for _, d := range ev.Documents {
		mt := normalizeMediaType(d.MediaType)
		payload.Documents = append(payload.Documents, domain.EncodedDocument{
			Name:      d.Name,
			MediaType: mt,
			Type:      documentType(mt),
			Size:      d.Size(),
			Data:      base64.StdEncoding.EncodeToString(d.Content),
		})
	}
	return payload, nil
}

// DocumentFromBytes wraps raw content. An empty mediaType is inferred from the
// file extension, then from the content itself.
func DocumentFromBytes(name string, content []byte, mediaType string) (EvidenceDocument, error) {
	if strings.TrimSpace(name) == "" {
		return EvidenceDocument{}, &ValidationError{Reason: ErrInvalidDocument, Detail: "document name is required"}
	}
	if mediaType == "" {
		mediaType = detectMediaType(name, content)
	}
	return EvidenceDocument{Name: name, Content: content, MediaType: normalizeMediaType(mediaType)}, nil
}

// DocumentFromBase64 decodes either plain base64 text or a data URL
// ("data:application/pdf;base64,JVBERi0...") as produced by browser uploads.
func DocumentFromBase64(name, text string) (EvidenceDocument, error) {
	text = strings.TrimSpace(text)
	mediaType := ""

	if rest, ok := strings.CutPrefix(text, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return EvidenceDocument{}, &ValidationError{Reason: ErrInvalidDocument, Document: name, Detail: "data URL is missing the comma separator"}
		}
		params := strings.Split(header, ";")
		isBase64 := false
		for _, p := range params[1:] {
			if p == "base64" {
				isBase64 = true
			}
		}
		if !isBase64 {
			return EvidenceDocument{}, &ValidationError{Reason: ErrInvalidDocument, Document: name, Detail: "only base64 data URLs are supported"}
		}
		mediaType = params[0]
		text = data
	}

	content, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return EvidenceDocument{}, &ValidationError{Reason: ErrInvalidDocument, Document: name, Detail: "invalid base64: " + err.Error()}
	}
	return DocumentFromBytes(name, content, mediaType)
}

// DocumentFromPath reads the whole file eagerly so validation sees its true size.
func DocumentFromPath(path string) (EvidenceDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return EvidenceDocument{}, fmt.Errorf("read evidence %s: %w", path, err)
	}
	return DocumentFromBytes(filepath.Base(path), content, "")
}

func detectMediaType(name string, content []byte) string {
	if mt, ok := extensionMediaTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return mimetype.Detect(content).String()
}

func normalizeMediaType(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if alias, ok := mediaTypeAliases[mt]; ok {
		return alias
	}
	return mt
}

func documentType(mt string) domain.DocumentType {
	if t, ok := supportedMediaTypes[mt]; ok {
		return t
	}
	switch {
	case mt == "text/plain":
		return domain.DocumentText
	case strings.HasPrefix(mt, "image/"):
		return domain.DocumentImage
	default:
		return domain.DocumentOther
	}
}
