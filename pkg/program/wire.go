package program

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Wire format: a four-byte magic, then the canonical CBOR encoding of the
// Program. Canonical mode makes encoding deterministic, so equal programs
// produce equal bytes and can be content-addressed by the cache.

// WireMagic prefixes serialized programs: "RFPC" (ReFlow Program, CBOR).
var WireMagic = []byte{'R', 'F', 'P', 'C'}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("program: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a program to wire bytes.
func Marshal(p *Program) ([]byte, error) {
	body, err := cborEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("program: marshal %s: %w", p.ID, err)
	}
	out := make([]byte, 0, len(WireMagic)+len(body))
	out = append(out, WireMagic...)
	out = append(out, body...)
	return out, nil
}

// Unmarshal deserializes a program from wire bytes and validates it.
func Unmarshal(data []byte) (*Program, error) {
	if len(data) < len(WireMagic) || string(data[:len(WireMagic)]) != string(WireMagic) {
		return nil, fmt.Errorf("program: invalid wire magic")
	}
	var p Program
	if err := cbor.Unmarshal(data[len(WireMagic):], &p); err != nil {
		return nil, fmt.Errorf("program: unmarshal: %w", err)
	}
	if p.Version > FormatVersion {
		return nil, fmt.Errorf("program %s: format version %d is newer than supported version %d",
			p.ID, p.Version, FormatVersion)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
