package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"docsum-backend/internal/shared/apperr"
	"docsum-backend/internal/shared/telemetry"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Extractor turns stored bytes into plain text. PDF goes through
// github.com/ledongthuc/pdf and DOCX through github.com/nguyenthenguyen/docx;
// anything else, or any library failure, degrades to a UTF-8 reading of the bytes.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the best available text for data. It fails only when the
// context is done or when not even the UTF-8 fallback yields any text.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	const op = "extract.text"
	if err := ctx.Err(); err != nil {
		return "", apperr.Extraction(op, err)
	}

	normalized := NormalizeMimeType(mimeType, data)
	var (
		text string
		err  error
	)
	switch normalized {
	case MimePDF:
		text, err = extractPDF(data)
	case MimeDOCX:
		text, err = extractDOCX(data)
	default:
		return fallbackText(op, data)
	}
	if err != nil {
		telemetry.Warn("extract.fallback", map[string]any{
			"mime": normalized,
			"err":  err,
		})
		return fallbackText(op, data)
	}
	return cleanText(text), nil
}

func fallbackText(op string, data []byte) (string, error) {
	text := cleanText(string(data))
	if len(data) > 0 && strings.TrimSpace(text) == "" {
		return "", apperr.Extraction(op, errors.New("no decodable text"))
	}
	return text, nil
}

// cleanText drops invalid UTF-8 and NUL bytes, which Postgres text columns reject.
func cleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.ReplaceAll(s, "\x00", "")
}

func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}

	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		// Packages missing optional parts (relationships, headers) still carry
		// word/document.xml; read it straight from the archive.
		raw, zipErr := readDocumentXML(data)
		if zipErr != nil {
			return "", errors.Join(err, zipErr)
		}
		return stripDocxXML(raw), nil
	}
	defer doc.Close()

	return stripDocxXML(doc.Editable().GetContent()), nil
}

func readDocumentXML(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return "", errors.New("document.xml file not found")
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.StartElement:
			if t.Name.Local == "tab" {
				buf.WriteString("\t")
			}
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// NormalizeMimeType lower-cases, drops parameters and maps zip archives that
// carry a Word document to the DOCX type.
func NormalizeMimeType(mimeType string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean == "application/zip" && isWordArchive(data) {
		return MimeDOCX
	}
	return clean
}

func isWordArchive(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
