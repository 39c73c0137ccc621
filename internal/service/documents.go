package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

const (
	mimePDF   = "application/pdf"
	mimeJPEG  = "image/jpeg"
	mimePNG   = "image/png"
	mimeText  = "text/plain"
	mimeOctet = "application/octet-stream"
)

var extensionMIME = map[string]string{
	".pdf":  mimePDF,
	".jpg":  mimeJPEG,
	".jpeg": mimeJPEG,
	".png":  mimePNG,
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".txt":  mimeText,
}

// MIMETypeFor maps a file extension to the MIME type sent to the model.
func MIMETypeFor(path string) string {
	if m, ok := extensionMIME[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return mimeOctet
}

type PreparedDocument struct {
	MIMEType    string
	Attachments []Attachment
	// Text holds the content of plain text reports, which are sent inline.
	Text string
}

// DocumentPreparer turns a stored report into model attachments.
type DocumentPreparer struct {
	maxDimension int
	maxPDFPages  int
}

func NewDocumentPreparer(maxDimension, maxPDFPages int) *DocumentPreparer {
	return &DocumentPreparer{maxDimension: maxDimension, maxPDFPages: maxPDFPages}
}

func (p *DocumentPreparer) Prepare(path string, acceptsPDF bool) (*PreparedDocument, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	mimeType := MIMETypeFor(path)
	doc := &PreparedDocument{MIMEType: mimeType}
	name := filepath.Base(path)

	switch {
	case mimeType == mimeText:
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		doc.Text = sanitizeUTF8(string(raw))

	case mimeType == mimePDF && !acceptsPDF:
		pages, err := p.renderPDF(path)
		if err != nil {
			return nil, err
		}
		doc.Attachments = pages

	case strings.HasPrefix(mimeType, "image/"):
		att, err := p.prepareImage(path, name, mimeType)
		if err != nil {
			return nil, err
		}
		doc.Attachments = []Attachment{att}

	default:
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		doc.Attachments = []Attachment{{Name: name, MIMEType: mimeType, Data: raw}}
	}

	return doc, nil
}

// prepareImage passes small images through untouched and downscales large ones.
func (p *DocumentPreparer) prepareImage(path, name, mimeType string) (Attachment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	original := Attachment{Name: name, MIMEType: mimeType, Data: raw}

	if p.maxDimension <= 0 {
		return original, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		// formats imaging cannot decode (webp) go to the model as uploaded
		return original, nil
	}
	if cfg.Width <= p.maxDimension && cfg.Height <= p.maxDimension {
		return original, nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return original, nil
	}

	data, outMIME, err := p.encode(img, mimeType == mimeJPEG)
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{Name: name, MIMEType: outMIME, Data: data}, nil
}

func (p *DocumentPreparer) renderPDF(path string) ([]Attachment, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open pdf: %v", ErrEncoding, err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if p.maxPDFPages > 0 {
		pages = min(pages, p.maxPDFPages)
	}
	if pages == 0 {
		return nil, fmt.Errorf("%w: pdf has no pages", ErrEncoding)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	attachments := make([]Attachment, 0, pages)
	for i := range pages {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to render page %d: %v", ErrEncoding, i+1, err)
		}

		data, mimeType, err := p.encode(img, false)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, Attachment{
			Name:     fmt.Sprintf("%s-page-%d.png", base, i+1),
			MIMEType: mimeType,
			Data:     data,
		})
	}

	return attachments, nil
}

func (p *DocumentPreparer) encode(img image.Image, asJPEG bool) ([]byte, string, error) {
	if p.maxDimension > 0 {
		b := img.Bounds()
		if b.Dx() > p.maxDimension || b.Dy() > p.maxDimension {
			img = imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
		}
	}

	format, mimeType := imaging.PNG, mimePNG
	if asJPEG {
		format, mimeType = imaging.JPEG, mimeJPEG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return buf.Bytes(), mimeType, nil
}
