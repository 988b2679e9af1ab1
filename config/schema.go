package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"ergo.services/dvm/gen"
)

const schemaSource = `
#duration: =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"
#type:     string & !=""

vm?: close({
	name?:       string
	tick?:       #duration
	lock_order?: bool
})

log?: close({
	level?:       "trace" | "debug" | "default" | "info" | "warning" | "error" | "panic" | "disabled"
	format?:      "console" | "text" | "json"
	journal?:     bool
	no_color?:    bool
	time_format?: string
	fields?:      bool
})

processor?: [...close({
	name:       string & !=""
	scheduler?: "official"
})]

migration?: close({
	logic?:     "first" | "least_loaded" | "none"
	max_moves?: int & >=0
})

sink?: close({
	sqlite?: string & !=""
	log?:    bool
})

process?: [...close({
	name:       string & !=""
	script:     string & !=""
	max_steps?: int & >=0
	link?:      [...string]
	monitor?:   [...string]
	subscribe?: [...#type]
	flags?: {[string]: _}
	handler?: [...close({
		input:  #type
		output: #type
		kind:   "receive" | "delegate" | "publish" | "constant" | "store_put" | "store_get"
		to?:    string & !=""
		value?: _
		if kind == "delegate" {
			to: string
		}
	})]
})]
`

var schema cue.Value

func init() {
	ctx := cuecontext.New()
	schema = ctx.CompileString("close({" + schemaSource + "})")
	if err := schema.Err(); err != nil {
		panic(fmt.Sprintf("config: malformed schema: %v", err))
	}
}

// Validate checks the decoded TOML document against the configuration schema.
func Validate(document map[string]any) error {
	value := schema.Context().Encode(document)
	if err := value.Err(); err != nil {
		return fmt.Errorf("%w: %s", gen.ErrIncorrect, err)
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", gen.ErrIncorrect, err)
	}
	return nil
}
