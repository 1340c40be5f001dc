// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package federation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Flag is a boolean claim that may be absent. Providers and clients send it
// either as a JSON boolean or as the string "true"/"false".
type Flag struct {
	set   bool
	value bool
}

// NewFlag returns a present Flag with value v.
func NewFlag(v bool) Flag {
	return Flag{set: true, value: v}
}

// UnmarshalJSON accepts true, false, "true", "false" and null.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = Flag{}
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = NewFlag(b)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flag must be a boolean or a string, got %s", data)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		*f = NewFlag(true)
	case "false":
		*f = NewFlag(false)
	case "":
		*f = Flag{}
	default:
		return fmt.Errorf("flag must be \"true\" or \"false\", got %q", s)
	}
	return nil
}

// Ptr returns nil when the flag is absent, otherwise a pointer to its value.
func (f Flag) Ptr() *bool {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}
