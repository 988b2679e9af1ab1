package logger

import (
	"fmt"

	"ergo.services/dvm/gen"
)

// source returns the text form of the message source and its kind.
func source(m gen.MessageLog) (string, string) {
	switch src := m.Source.(type) {
	case gen.MessageLogVM:
		return src.Name, "vm"
	case gen.MessageLogDProcess:
		if src.Name != "" {
			return fmt.Sprintf("%s '%s'", src.DProcessID, src.Name), "dprocess"
		}
		return src.DProcessID.String(), "dprocess"
	case gen.MessageLogProcessor:
		return fmt.Sprintf("%s/%s", src.VM, src.Processor), "processor"
	}
	panic(fmt.Sprintf("unknown log source type: %#v", m.Source))
}
