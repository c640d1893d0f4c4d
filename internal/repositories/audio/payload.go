package audio

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// PayloadKind tells which representation a Payload holds.
type PayloadKind string

const (
	KindBinary  PayloadKind = "binary"
	KindEncoded PayloadKind = "encoded"
)

// Payload is clip data in one of two representations: raw bytes, or text that
// is base64 or a base64 data URL. The kind is persisted, so a stored payload
// comes back exactly as it was saved.
type Payload struct {
	kind PayloadKind
	bin  []byte
	text string
}

// Binary wraps raw bytes.
func Binary(b []byte) Payload { return Payload{kind: KindBinary, bin: b} }

// Encoded wraps base64 text or a data URL.
func Encoded(s string) Payload { return Payload{kind: KindEncoded, text: s} }

func (p Payload) Kind() PayloadKind { return p.kind }

// Size is the byte length of the stored representation.
func (p Payload) Size() int64 {
	if p.kind == KindEncoded {
		return int64(len(p.text))
	}
	return int64(len(p.bin))
}

// raw is the representation the checksum is computed over.
func (p Payload) raw() []byte {
	if p.kind == KindEncoded {
		return []byte(p.text)
	}
	return p.bin
}

// Bytes returns decoded audio bytes. Encoded payloads are decoded from base64,
// with an optional "data:<mime>;base64," prefix.
func (p Payload) Bytes() ([]byte, error) {
	if p.kind != KindEncoded {
		return p.bin, nil
	}
	s := p.text
	if strings.HasPrefix(s, "data:") {
		_, after, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = after
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return b, nil
}

// Text returns the encoded form; binary payloads are base64 encoded.
func (p Payload) Text() string {
	if p.kind == KindEncoded {
		return p.text
	}
	return base64.StdEncoding.EncodeToString(p.bin)
}

type payloadJSON struct {
	Kind PayloadKind `json:"kind"`
	Data string      `json:"data"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	kind := p.kind
	if kind == "" {
		kind = KindBinary
	}
	return json.Marshal(payloadJSON{Kind: kind, Data: p.Text()})
}

func (p *Payload) UnmarshalJSON(b []byte) error {
	var v payloadJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v.Kind {
	case KindEncoded:
		*p = Encoded(v.Data)
	case KindBinary, "":
		bin, err := base64.StdEncoding.DecodeString(v.Data)
		if err != nil {
			return fmt.Errorf("decode binary payload: %w", err)
		}
		*p = Binary(bin)
	default:
		return fmt.Errorf("unknown payload kind %q", v.Kind)
	}
	return nil
}
