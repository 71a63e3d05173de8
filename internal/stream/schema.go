package stream

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// envelopeSchema 只约束信封结构，单条记录的字段缺失按记录跳过处理。
const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["Records"],
  "properties": {
    "Records": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["eventName"],
        "properties": {
          "eventID": {"type": "string"},
          "eventName": {"type": "string"},
          "dynamodb": {
            "type": "object",
            "properties": {
              "Keys": {"type": "object"},
              "NewImage": {"type": "object"}
            }
          }
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func compiledEnvelope() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("envelope.json", strings.NewReader(envelopeSchema)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("envelope.json")
	})
	return schemaCompiled, schemaErr
}
