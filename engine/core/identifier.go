package core

import (
	"fmt"

	"github.com/google/uuid"
)

/** @brief A magic number indicating the object as invalid. */
const InvalidID uint32 = 4294967295
const InvalidIDUint16 uint16 = 65535
const InvalidIDUint8 uint8 = 255

type Identifier struct {
	OwnerID        interface{}
	UniqueID       uint32
	ReferenceCount uint32
}

var currentID uint32 = InvalidID

func IdentifierAquireNewID(owner interface{}) *Identifier {
	currentID++
	return &Identifier{
		OwnerID:        owner,
		UniqueID:       currentID,
		ReferenceCount: 1,
	}
}

// GenerateName returns a unique debug name for an unnamed resource.
func GenerateName(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String())
}
