// Package codec turns record payloads into the opaque bytes a ledger stores
// and back.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/aretw0/bidtrail/pkg/core"
)

// ErrNotObject is returned when a payload decodes to something other than an object.
var ErrNotObject = errors.New("payload is not an object")

// Codec defines how payloads are encoded on the ledger.
type Codec interface {
	// Name identifies the codec in configuration ("json", "cbor").
	Name() string
	// Marshal encodes a payload struct or map.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes data into a payload. It fails on anything but an object.
	Unmarshal(data []byte) (core.Payload, error)
}

// Default returns the codec used when none is configured.
func Default() Codec {
	return NewJSON(false)
}

// Registry returns the standard set of codecs, keyed by name.
func Registry(strict bool) map[string]Codec {
	return map[string]Codec{
		"json": NewJSON(strict),
		"cbor": NewCBOR(),
	}
}

// Names lists the registered codec names.
func Names() []string {
	names := make([]string, 0, 2)
	for name := range Registry(false) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName looks a codec up in the registry.
func ByName(name string, strict bool) (Codec, error) {
	if name == "" {
		name = "json"
	}
	c, ok := Registry(strict)[name]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q (available: %v)", name, Names())
	}
	return c, nil
}

// --- JSON Codec ---

// JSON encodes payloads as JSON objects, the format every ledger writer shares.
type JSON struct {
	// Strict keeps numbers as json.Number to avoid precision loss.
	Strict bool
}

// NewJSON creates a JSON codec.
func NewJSON(strict bool) *JSON {
	return &JSON{Strict: strict}
}

func (c *JSON) Name() string { return "json" }

func (c *JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSON) Unmarshal(data []byte) (core.Payload, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	if c.Strict {
		decoder.UseNumber()
	}
	var v any
	if err := decoder.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if err := decoder.Decode(new(json.RawMessage)); err != io.EOF {
		return nil, fmt.Errorf("invalid json: trailing data after payload")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return core.Payload(obj), nil
}

// --- CBOR Codec ---

// CBOR encodes payloads as CBOR maps. It is more compact than JSON but only
// readable by writers configured with the same codec.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBOR creates a CBOR codec with deterministic encoding and string-keyed maps.
func NewCBOR() *CBOR {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoder options: %v", err))
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cbor decoder options: %v", err))
	}
	return &CBOR{enc: enc, dec: dec}
}

func (c *CBOR) Name() string { return "cbor" }

func (c *CBOR) Marshal(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c *CBOR) Unmarshal(data []byte) (core.Payload, error) {
	var v any
	if err := c.dec.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid cbor: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return core.Payload(obj), nil
}
