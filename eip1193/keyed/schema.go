package keyed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// addChainSchema is the JSON schema of the wallet_addEthereumChain parameter, following the
// constraints of EIP-3085.
const addChainSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["chainId", "chainName", "nativeCurrency", "rpcUrls"],
  "properties": {
    "chainId": {"type": "string", "pattern": "^0x[0-9a-fA-F]+$"},
    "chainName": {"type": "string", "minLength": 1},
    "nativeCurrency": {
      "type": "object",
      "required": ["name", "symbol", "decimals"],
      "properties": {
        "name": {"type": "string", "minLength": 1},
        "symbol": {"type": "string", "minLength": 2, "maxLength": 6},
        "decimals": {"type": "integer", "minimum": 0, "maximum": 36}
      }
    },
    "rpcUrls": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "pattern": "^(https?|wss?)://"}
    },
    "blockExplorerUrls": {
      "type": ["array", "null"],
      "items": {"type": "string", "pattern": "^https?://"}
    },
    "iconUrls": {
      "type": ["array", "null"],
      "items": {"type": "string"}
    }
  }
}`

var loadAddChainSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(addChainSchema))
})

// validateAddChainParameter checks the raw wallet_addEthereumChain parameter against the
// schema.
func validateAddChainParameter(raw json.RawMessage) error {
	schema, err := loadAddChainSchema()
	if err != nil {
		return fmt.Errorf("failed to load add chain schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}

		return errors.New("invalid chain parameter: " + strings.Join(msgs, "; "))
	}

	return nil
}
