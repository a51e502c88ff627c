package braketexec

import "encoding/json"

// Codec converts argument and result values to and from the byte form
// shipped through the object store. The executor treats the bytes as
// opaque; the rendered execution script must agree with the codec, which
// is why a codec exposes a name the script template can dispatch on.
type Codec interface {
	Name() string
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte) (interface{}, error)
}

// JSONCodec is the default codec.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte) (interface{}, error) {
	var v interface{}
	err := json.Unmarshal(data, &v)
	return v, err
}
