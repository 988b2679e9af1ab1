package gen

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// DProcessID identifies a d-process. It is generated at spawn time and never
// changes for the lifetime of the process.
type DProcessID uuid.UUID

// NewDProcessID
func NewDProcessID() DProcessID {
	return DProcessID(uuid.New())
}

// ParseDProcessID parses the canonical text form returned by String.
func ParseDProcessID(s string) (DProcessID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return DProcessID{}, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	return DProcessID(id), nil
}

func (id DProcessID) String() string {
	return uuid.UUID(id).String()
}

// IsZero returns true for the zero value, which never names a d-process.
func (id DProcessID) IsZero() bool {
	return id == DProcessID{}
}

// Less orders ids by their bytes. It is used wherever locks of two different
// d-processes must be taken together.
func (id DProcessID) Less(other DProcessID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

func (id DProcessID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *DProcessID) UnmarshalText(data []byte) error {
	parsed, err := ParseDProcessID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ProcessorName is the user-chosen name of a processor.
type ProcessorName string

func (p ProcessorName) String() string {
	return string(p)
}

// FlagName names a d-process flag.
type FlagName string

const (
	// FlagPriority is reserved for a scheduling priority. The reference scheduler
	// does not consume it.
	FlagPriority FlagName = "priority"
)

// Version
type Version struct {
	Name    string
	Release string
	License string
}

func (v Version) String() string {
	return fmt.Sprintf("%s %s (%s)", v.Name, v.Release, v.License)
}

const (
	LicenseMIT string = "MIT"
)

// ProcessorAttachment tells which processor a d-process is attached to. A
// d-process belongs to at most one processor at a time.
type ProcessorAttachment struct {
	Processor ProcessorName
	Attached  bool
}

// Attached
func Attached(name ProcessorName) ProcessorAttachment {
	return ProcessorAttachment{Processor: name, Attached: true}
}

// Detached
var Detached = ProcessorAttachment{}

func (a ProcessorAttachment) String() string {
	if a.Attached {
		return "attached to " + string(a.Processor)
	}
	return "detached"
}
