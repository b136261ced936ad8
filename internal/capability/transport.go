package capability

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/zstd"
)

const (
	// MaxTransportSize bounds the encoded capability accepted from clients.
	MaxTransportSize = 8 << 10
	// MaxDecodedSize bounds the decompressed capability.
	MaxDecodedSize = 64 << 10
)

var (
	// ErrMalformedTransport covers every structural decoding failure.
	ErrMalformedTransport = errors.New("capability: malformed transport")
	// ErrInvalidPayload is returned by Validate when a payload breaks its variant's schema.
	ErrInvalidPayload = errors.New("capability: invalid payload")
)

// Shared codecs are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	validate    *validator.Validate
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBestCompression),
		zstd.WithEncoderCRC(true),
		zstd.WithSingleSegment(true),
	)
	if err != nil {
		panic("capability: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxDecodedSize),
		zstd.WithDecoderConcurrency(0),
	)
	if err != nil {
		panic("capability: zstd decoder initialization failed: " + err.Error())
	}

	validate = validator.New(validator.WithRequiredStructEnabled())
}

// EncodeForTransport packs p and its signature into a URL-safe string.
func EncodeForTransport(p Payload, signature string) (string, error) {
	canonical, err := Canonicalize(p)
	if err != nil {
		return "", err
	}
	raw, err := envelope(canonical, signature)
	if err != nil {
		return "", err
	}

	compressed := zstdEncoder.EncodeAll(raw, nil)
	return url.QueryEscape(base64.RawURLEncoding.EncodeToString(compressed)), nil
}

func envelope(canonical, signature string) ([]byte, error) {
	sig, err := json.Marshal(signature)
	if err != nil {
		return nil, fmt.Errorf("encode signature: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.WriteString(canonical)
	buf.WriteByte(',')
	buf.Write(sig)
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// DecodeFromTransport reverses EncodeForTransport. Capabilities minted before compression was
// introduced (standard base64 JSON) are still accepted.
func DecodeFromTransport(s string) (Payload, string, error) {
	if s == "" {
		return nil, "", fmt.Errorf("%w: empty", ErrMalformedTransport)
	}
	if len(s) > MaxTransportSize {
		return nil, "", fmt.Errorf("%w: %d bytes exceeds limit", ErrMalformedTransport, len(s))
	}
	unescaped, err := url.QueryUnescape(s)
	if err != nil {
		return nil, "", fmt.Errorf("%w: unescape: %v", ErrMalformedTransport, err)
	}

	raw, err := decompress(unescaped)
	if err != nil {
		legacy, legacyErr := decodeLegacy(unescaped)
		if legacyErr != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrMalformedTransport, err)
		}
		raw = legacy
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, "", fmt.Errorf("%w: envelope: %v", ErrMalformedTransport, err)
	}
	if len(parts) != 2 {
		return nil, "", fmt.Errorf("%w: envelope has %d parts", ErrMalformedTransport, len(parts))
	}

	var signature string
	if err := json.Unmarshal(parts[1], &signature); err != nil {
		return nil, "", fmt.Errorf("%w: signature: %v", ErrMalformedTransport, err)
	}
	if signature == "" {
		return nil, "", fmt.Errorf("%w: missing signature", ErrMalformedTransport)
	}

	payload, canonical, err := decodePayload(parts[0])
	if err != nil {
		return nil, "", err
	}
	// Only the exact envelope EncodeForTransport produces is accepted.
	expected, err := envelope(canonical, signature)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedTransport, err)
	}
	if !bytes.Equal(raw, expected) {
		return nil, "", fmt.Errorf("%w: payload is not canonical", ErrMalformedTransport)
	}
	return payload, signature, nil
}

// DecodePayload parses a canonical payload submitted outside the transport envelope.
func DecodePayload(data string) (Payload, error) {
	if len(data) > MaxDecodedSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit", ErrMalformedTransport, len(data))
	}
	payload, canonical, err := decodePayload([]byte(data))
	if err != nil {
		return nil, err
	}
	if canonical != data {
		return nil, fmt.Errorf("%w: payload is not canonical", ErrMalformedTransport)
	}
	return payload, nil
}

// decodePayload parses raw into its variant and returns the variant's canonical form.
func decodePayload(raw []byte) (Payload, string, error) {
	var head struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, "", fmt.Errorf("%w: payload: %v", ErrMalformedTransport, err)
	}
	traits, ok := Lookup(head.Kind)
	if !ok {
		return nil, "", fmt.Errorf("%w: unknown kind %q", ErrMalformedTransport, head.Kind)
	}

	payload := traits.newPayload()
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return nil, "", fmt.Errorf("%w: payload: %v", ErrMalformedTransport, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, "", fmt.Errorf("%w: trailing data after payload", ErrMalformedTransport)
	}
	if err := Validate(payload); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedTransport, err)
	}
	canonical, err := Canonicalize(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedTransport, err)
	}
	return payload, canonical, nil
}

// Validate checks p against its variant's schema.
func Validate(p Payload) error {
	if p == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func decompress(s string) ([]byte, error) {
	compressed, err := base64.RawURLEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	raw, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	if len(raw) > MaxDecodedSize {
		return nil, fmt.Errorf("decoded %d bytes exceeds limit", len(raw))
	}
	return raw, nil
}

// decodeLegacy accepts the btoa(JSON) form. Query parsing may have turned '+' into spaces.
func decodeLegacy(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, " ", "+")
	raw, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		raw, err = base64.RawStdEncoding.Strict().DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("legacy base64: %w", err)
		}
	}
	if !json.Valid(raw) {
		return nil, errors.New("legacy payload is not JSON")
	}
	return raw, nil
}
