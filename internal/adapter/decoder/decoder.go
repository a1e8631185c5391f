// Package decoder contains the default [domain.Decoder] implementation,
// converting caller-supplied shapes (maps, structs, native option types)
// into one another under the same struct tag the document parser honors.
package decoder

import (
	"github.com/mitchellh/mapstructure"
	"github.com/seamdb/seam/domain"
	"github.com/seamdb/seam/pkg/doc"
)

// Decoder implements domain.Decoder on mapstructure.
type Decoder struct {
	tagName string
}

// NewDecoder returns a new implementation of domain.Decoder.
func NewDecoder() domain.Decoder {
	return &Decoder{tagName: doc.TagName}
}

// Decode implements domain.Decoder. A fresh mapstructure decoder is built
// per call since the library binds the target at construction time.
func (d *Decoder) Decode(src any, tgt any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: d.tagName,
		Result:  tgt,
	})
	if err != nil {
		return err
	}
	return dec.Decode(src)
}
