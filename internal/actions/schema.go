package actions

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/payloads.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemaDocs map[Type]json.RawMessage
	schemaErr  error
)

type schemaFile struct {
	Payloads map[string]json.RawMessage `json:"payloads"`
}

func loadSchemas() (map[Type]json.RawMessage, error) {
	schemaOnce.Do(func() {
		data, err := schemaFS.ReadFile("schemas/payloads.json")
		if err != nil {
			schemaErr = err
			return
		}
		var doc schemaFile
		if err := json.Unmarshal(data, &doc); err != nil {
			schemaErr = err
			return
		}
		schemaDocs = make(map[Type]json.RawMessage, len(doc.Payloads))
		for name, raw := range doc.Payloads {
			schemaDocs[Type(name)] = raw
		}
	})
	return schemaDocs, schemaErr
}

func validateSchema(actionType Type, raw json.RawMessage) error {
	docs, err := loadSchemas()
	if err != nil {
		return err
	}
	schema, ok := docs[actionType]
	if !ok {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("invalid payload json: %w", err)
	}
	var schemaVal any
	if err := json.Unmarshal(schema, &schemaVal); err != nil {
		return err
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schemaVal), gojsonschema.NewGoLoader(value))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	if len(result.Errors()) == 0 {
		return errors.New("payload validation failed")
	}
	return fmt.Errorf("payload validation failed: %s", result.Errors()[0].String())
}
