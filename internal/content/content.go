// Package content defines the typed payloads a Section can carry. The payload
// is stored as JSON next to its content type and is validated whenever it
// crosses the API boundary.
package content

import (
	"bytes"
	"encoding/json"
	"strings"

	"wownote/internal/apperr"
)

// Type names the kind of widget a Section renders.
type Type string

const (
	TypeText    Type = "text"
	TypeFile    Type = "file"
	TypeImage   Type = "image"
	TypeLink    Type = "link"
	TypeStorage Type = "storage"
)

// ParseType validates a content type name. An empty name defaults to text.
func ParseType(raw string) (Type, error) {
	t := Type(strings.TrimSpace(raw))
	switch t {
	case "":
		return TypeText, nil
	case TypeText, TypeFile, TypeImage, TypeLink, TypeStorage:
		return t, nil
	default:
		return "", apperr.Validation("unsupported content_type %q", raw)
	}
}

// Payload is implemented by every content variant.
type Payload interface {
	payload()
}

// TextContent backs a notepad widget.
type TextContent struct {
	Text       string `json:"text"`
	BgColor    string `json:"bgColor,omitempty"`
	FontFamily string `json:"fontFamily,omitempty"`
	FontSize   string `json:"fontSize,omitempty"`
	FontColor  string `json:"fontColor,omitempty"`
}

// FileContent references a file on disk. Used by both file and image sections.
type FileContent struct {
	FilePath string `json:"file_path"`
	Filename string `json:"filename"`
	FileSize int64  `json:"file_size,omitempty"`
	FileType string `json:"file_type,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// LinkContent is a hyperlink widget.
type LinkContent struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// StorageContent mounts a directory as a live file browser.
type StorageContent struct {
	Path        string `json:"path"`
	StorageType string `json:"storage_type,omitempty"`
	ViewMode    string `json:"view_mode,omitempty"`
}

func (TextContent) payload()    {}
func (FileContent) payload()    {}
func (LinkContent) payload()    {}
func (StorageContent) payload() {}

// Parse decodes raw into the variant that matches t. An absent payload (empty
// or JSON null) yields a nil Payload and no error.
func Parse(t Type, raw []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return nil, apperr.Validation("content_data must be an object")
	}

	switch t {
	case TypeText:
		var c TextContent
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, apperr.Validation("invalid text content: %v", err)
		}
		return c, nil
	case TypeFile, TypeImage:
		var c FileContent
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, apperr.Validation("invalid %s content: %v", t, err)
		}
		return c, nil
	case TypeLink:
		var c LinkContent
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, apperr.Validation("invalid link content: %v", err)
		}
		if strings.TrimSpace(c.URL) == "" {
			return nil, apperr.Validation("link content requires url")
		}
		return c, nil
	case TypeStorage:
		var c StorageContent
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, apperr.Validation("invalid storage content: %v", err)
		}
		return c, nil
	default:
		return nil, apperr.Validation("unsupported content_type %q", t)
	}
}

// Encode marshals a payload for persistence. A nil payload encodes to nil.
func Encode(p Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Normalize parses raw against t and re-encodes it, dropping fields the
// variant does not know about.
func Normalize(t Type, raw []byte) ([]byte, error) {
	p, err := Parse(t, raw)
	if err != nil {
		return nil, err
	}
	return Encode(p)
}

// Storage extracts the storage payload of a section. Sections of another type
// are a validation error; a missing path is reported as not found.
func Storage(t Type, raw []byte) (StorageContent, error) {
	if t != TypeStorage {
		return StorageContent{}, apperr.Validation("Not a storage section")
	}
	p, err := Parse(t, raw)
	if err != nil {
		return StorageContent{}, err
	}
	c, _ := p.(StorageContent)
	if strings.TrimSpace(c.Path) == "" {
		return StorageContent{}, apperr.NotFound("Path not found: ")
	}
	return c, nil
}

// File extracts the file payload of a file or image section.
func File(t Type, raw []byte) (FileContent, error) {
	if t != TypeFile && t != TypeImage {
		return FileContent{}, apperr.Validation("Not a file or image section")
	}
	p, err := Parse(t, raw)
	if err != nil {
		return FileContent{}, err
	}
	if p == nil {
		return FileContent{}, apperr.Validation("Not a file or image section")
	}
	return p.(FileContent), nil
}
