package clip

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of a file the magic-byte check looks at
const sniffLen = 512

// mimeFormats maps detected MIME types to decoder format names. mimetype's
// Is also matches aliases such as audio/x-wav.
var mimeFormats = []struct {
	mime   string
	format string
}{
	{"audio/wav", "WAV"},
	{"audio/mpeg", "MP3"},
	{"audio/aiff", "AIFF"},
}

// DecoderRegistry picks a decoder for a clip file by content, then by extension
type DecoderRegistry struct {
	decoders []Decoder
	byFormat map[string]Decoder
}

// NewDecoderRegistry creates an empty registry
func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{byFormat: make(map[string]Decoder)}
}

// NewDefaultRegistry creates a registry with the WAV, MP3 and AIFF decoders
func NewDefaultRegistry() *DecoderRegistry {
	registry := NewDecoderRegistry()
	registry.Register(NewWavDecoder())
	registry.Register(NewMp3Decoder())
	registry.Register(NewAiffDecoder())

	slog.Debug("clip decoders ready", "formats", registry.GetSupportedFormats())
	return registry
}

// Register adds a decoder. Earlier registrations win extension ties.
func (r *DecoderRegistry) Register(decoder Decoder) {
	if decoder == nil {
		slog.Warn("ignoring nil clip decoder")
		return
	}

	name := strings.ToUpper(decoder.FormatName())
	if _, dup := r.byFormat[name]; dup {
		slog.Warn("clip decoder replaced", "format", name)
		for i, d := range r.decoders {
			if strings.EqualFold(d.FormatName(), name) {
				r.decoders[i] = decoder
			}
		}
	} else {
		r.decoders = append(r.decoders, decoder)
	}
	r.byFormat[name] = decoder
}

// GetSupportedFormats lists format names in registration order
func (r *DecoderRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(r.decoders))
	for _, d := range r.decoders {
		formats = append(formats, d.FormatName())
	}
	return formats
}

// DetectFormat chooses a decoder from filename's extension, or nil
func (r *DecoderRegistry) DetectFormat(filename string) Decoder {
	if filename == "" {
		return nil
	}
	for _, d := range r.decoders {
		if d.CanDecode(filename) {
			return d
		}
	}
	slog.Debug("no clip decoder for extension", "filename", filename)
	return nil
}

// DetectFormatWithContent trusts the file's magic bytes over its name. The
// extension is only consulted when the header is empty or unrecognised.
func (r *DecoderRegistry) DetectFormatWithContent(filename string, header []byte) Decoder {
	if len(header) == 0 {
		return r.DetectFormat(filename)
	}

	detected := mimetype.Detect(header)
	for _, mf := range mimeFormats {
		if !detected.Is(mf.mime) {
			continue
		}
		if d, ok := r.byFormat[mf.format]; ok {
			slog.Debug("clip format sniffed", "filename", filename, "mime_type", detected.String(), "format", mf.format)
			return d
		}
	}

	d := r.DetectFormat(filename)
	if d == nil {
		slog.Warn("clip format not recognised", "filename", filename, "mime_type", detected.String())
	}
	return d
}

// DecodeFile reads the whole clip and decodes it with the detected decoder
func (r *DecoderRegistry) DecodeFile(filename string, reader io.Reader) (*AudioData, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to read clip", "filename", filename, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}

	decoder := r.DetectFormatWithContent(filename, content[:min(len(content), sniffLen)])
	if decoder == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	data, err := decoder.Decode(bytes.NewReader(content))
	if err != nil {
		slog.Error("failed to decode clip", "filename", filename, "format", decoder.FormatName(), "error", err)
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	return data, nil
}
