package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/P-wig/cyphersql/internal/diag"
	"github.com/P-wig/cyphersql/internal/schema"
)

// LoadError represents an error that occurred while loading a schema.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
	// Problems holds every validation error when Code is ErrCodeSchemaInvalid.
	Problems schema.ValidationErrors
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchema reads a schema description, classifying failures by code.
func LoadSchema(path string) (*schema.Holder, error) {
	if path == "" {
		return nil, &LoadError{Code: ErrCodeNoSchema, Message: "no schema given (set --schema, schema in the config file or CYPHERSQL_SCHEMA)"}
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema is a directory: %s", path)}
	}

	holder, err := schema.LoadHolder(path)
	if err != nil {
		return nil, convertSchemaError(err)
	}
	return holder, nil
}

// convertSchemaError converts a schema error to a LoadError with position info.
func convertSchemaError(err error) *LoadError {
	var problems schema.ValidationErrors
	if errors.As(err, &problems) && len(problems) > 0 {
		return &LoadError{
			Code:     ErrCodeSchemaInvalid,
			Message:  fmt.Sprintf("schema has %d error(s)", len(problems)),
			Problems: problems,
		}
	}
	var compileErr *schema.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeSchemaDocument,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Config file or flag invalid
	ErrCodeNoSchema    = "E003" // No schema configured
	ErrCodeLoadFailed  = "E004" // Schema file unreadable
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeDatabase    = "E006" // Database open or DDL failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeExecFailed  = "E008" // Statement rejected by the database
	ErrCodeBadParam    = "E009" // --param not name=value

	// Lexer and parser
	ErrCodeLex         = "E201"
	ErrCodeParse       = "E202"
	ErrCodeUnsupported = "E203"

	// Schema documents; validation problems carry E301-E312 from the schema package
	ErrCodeSchemaDocument = "E300"
	ErrCodeSchemaInvalid  = "E399"

	// Binding
	ErrCodeSemantic = "E400"

	// Planning
	ErrCodePlan = "E500"

	// Code generation
	ErrCodeCodegen = "E601"
)

var semanticCodes = map[diag.Kind]string{
	diag.KindUnknownLabel:            "E401",
	diag.KindUnknownRelationshipType: "E402",
	diag.KindUnknownProperty:         "E403",
	diag.KindAmbiguousVariable:       "E404",
	diag.KindUndefinedVariable:       "E405",
	diag.KindUnresolvedLabel:         "E406",
	diag.KindIncompatibleEndpoint:    "E407",
	diag.KindInvalidHopRange:         "E408",
	diag.KindTypeMismatch:            "E409",
	diag.KindInvalidArgument:         "E410",
	diag.KindNoSchema:                "E411",
}

var planCodes = map[diag.Kind]string{
	diag.KindDisconnectedPattern:        "E501",
	diag.KindUnboundedRecursionRejected: "E502",
	diag.KindMixedAggregate:             "E503",
	diag.KindMisplacedAggregate:         "E504",
	diag.KindMissingKey:                 "E505",
	diag.KindInvalidPlan:                "E506",
}

// MapDiagnosticToErrorCode maps a translation error to a stable code.
// Codes depend on the category and kind only, never on the message.
func MapDiagnosticToErrorCode(err *diag.Error) string {
	switch err.Category {
	case diag.CategoryLex:
		return ErrCodeLex
	case diag.CategoryParse:
		return ErrCodeParse
	case diag.CategoryUnsupported:
		return ErrCodeUnsupported
	case diag.CategorySemantic:
		if code, ok := semanticCodes[err.Kind]; ok {
			return code
		}
		return ErrCodeSemantic
	case diag.CategoryPlan:
		if code, ok := planCodes[err.Kind]; ok {
			return code
		}
		return ErrCodePlan
	case diag.CategoryCodegen:
		return ErrCodeCodegen
	default:
		return ErrCodeGeneric
	}
}
