package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/cliptitle/internal/errors"
)

// bindArgs copies tool arguments into a request struct. Absent arguments
// leave the zero value; mistyped ones are an INVALID_REQUEST.
func bindArgs[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	args := req.GetArguments()
	if len(args) == 0 {
		return out, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return out, errors.NewInvalidRequest(fmt.Sprintf("arguments are not valid JSON: %v", err))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return out, errors.NewInvalidRequest(fmt.Sprintf("argument %q must be %s", typeErr.Field, typeErr.Type))
		}
		return out, errors.NewInvalidRequest(fmt.Sprintf("invalid arguments: %v", err))
	}
	return out, nil
}
