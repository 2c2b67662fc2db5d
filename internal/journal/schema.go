package journal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// lineSchemaJSON constrains journal lines to "some JSON object carrying a
// string type field" — a cheap first line of defence against garbage lines
// (binary noise, truncated writes caught mid-flush) before the full
// tagged-union decode in ParseRecord runs. It intentionally does not
// constrain per-type shape: each record type's own fields are optional and
// the dispatch table in the projector already tolerates missing fields.
const lineSchemaJSON = `{
	"type": "object",
	"required": ["type"],
	"properties": {
		"type": {"type": "string", "minLength": 1}
	}
}`

var lineSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("journal-line.json", strings.NewReader(lineSchemaJSON)); err != nil {
		panic(fmt.Sprintf("journal: compile line schema: %v", err))
	}
	sch, err := c.Compile("journal-line.json")
	if err != nil {
		panic(fmt.Sprintf("journal: compile line schema: %v", err))
	}
	lineSchema = sch
}

// ValidateShape reports whether line is a JSON object carrying a non-empty
// string "type" field. A false return means the line should be dropped as
// a malformed record (spec §7 "Malformed JSON record"), without attempting
// the fuller ParseRecord decode.
func ValidateShape(line []byte) bool {
	var v any
	if err := json.Unmarshal(line, &v); err != nil {
		return false
	}
	return lineSchema.Validate(v) == nil
}
