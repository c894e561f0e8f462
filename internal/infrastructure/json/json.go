// Package json routes decoding of upstream payloads through json-iterator.
package json

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Unmarshal decodes data into v with encoding/json semantics.
var Unmarshal = json.Unmarshal
