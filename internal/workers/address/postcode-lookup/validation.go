package postcodelookup

import "postcode-workers/internal/common/validation"

const inputSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["postcode"],
  "properties": {
    "postcode": {
      "type": "string",
      "description": "UK postcode as entered, any case and spacing"
    },
    "overrideCache": {
      "type": "boolean",
      "description": "Skip the cache read and always call the address service"
    }
  }
}`

var inputSchema = validation.MustCompile(TaskType+".input", inputSchemaJSON)

// GetInputSchema returns the compiled schema for job variables.
func GetInputSchema() *validation.Schema {
	return inputSchema
}
