package eventbrite

import (
	"bytes"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// searchResponseSchema describes the subset of the events-search payload we rely on.
const searchResponseSchema = `{
  "type": "object",
  "required": ["pagination", "events"],
  "properties": {
    "pagination": {
      "type": "object",
      "required": ["page_count"],
      "properties": {"page_count": {"type": "integer", "minimum": 0}}
    },
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "start", "end", "url"],
        "properties": {
          "id": {"type": ["string", "integer"]},
          "name": {"type": "object", "properties": {"text": {"type": ["string", "null"]}}},
          "start": {"type": "object", "required": ["utc"], "properties": {"utc": {"type": "string"}}},
          "end": {"type": "object", "required": ["utc"], "properties": {"utc": {"type": "string"}}},
          "url": {"type": "string"}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func responseSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(searchResponseSchema))
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("mem://eventbrite/search.json", doc); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = c.Compile("mem://eventbrite/search.json")
	})
	return compiledSchema, schemaErr
}

// validate checks a raw response body against the search response schema.
func validate(raw []byte) error {
	sch, err := responseSchema()
	if err != nil {
		return err
	}
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return sch.Validate(v)
}
