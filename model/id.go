package models

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// ID prefixes. TypeIDs are UUIDv7 based, so ids of one kind sort by creation time.
const (
	PrefixSale     = "sale"
	PrefixMovement = "mov"
	PrefixLog      = "log"
)

// NewID generates a new prefixed id such as "sale_01h2xcejqtf2nbrexx3vqjhp41".
func NewID(prefix string) string {
	tid, err := typeid.Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("models: invalid id prefix %q: %v", prefix, err))
	}
	return tid.String()
}
