package ir

import (
	"strings"

	"github.com/P-wig/cyphersql/internal/schema"
)

// Function is an entry of the function table.
type Function struct {
	// Name is the canonical Cypher spelling.
	Name      string
	Aggregate bool
	MinArgs   int
	// MaxArgs < 0 means variadic.
	MaxArgs int

	result func(args []Expr) schema.Type
}

// ResultType is the static type of a call with args.
func (f *Function) ResultType(args []Expr) schema.Type {
	if f.result == nil {
		return ""
	}
	return f.result(args)
}

func fixed(t schema.Type) func([]Expr) schema.Type {
	return func([]Expr) schema.Type { return t }
}

func firstArg(args []Expr) schema.Type {
	if len(args) == 0 {
		return ""
	}
	return TypeOf(args[0])
}

func numeric(args []Expr) schema.Type {
	if t := firstArg(args); t == schema.TypeInt || t == schema.TypeFloat {
		return t
	}
	return ""
}

// functions is keyed by lower-cased name; Cypher function names are case
// insensitive.
var functions = map[string]*Function{
	"count":    {Name: "count", Aggregate: true, MinArgs: 1, MaxArgs: 1, result: fixed(schema.TypeInt)},
	"sum":      {Name: "sum", Aggregate: true, MinArgs: 1, MaxArgs: 1, result: numeric},
	"avg":      {Name: "avg", Aggregate: true, MinArgs: 1, MaxArgs: 1, result: fixed(schema.TypeFloat)},
	"min":      {Name: "min", Aggregate: true, MinArgs: 1, MaxArgs: 1, result: firstArg},
	"max":      {Name: "max", Aggregate: true, MinArgs: 1, MaxArgs: 1, result: firstArg},
	"id":       {Name: "id", MinArgs: 1, MaxArgs: 1, result: firstArg},
	"type":     {Name: "type", MinArgs: 1, MaxArgs: 1, result: fixed(schema.TypeString)},
	"toupper":  {Name: "toUpper", MinArgs: 1, MaxArgs: 1, result: fixed(schema.TypeString)},
	"tolower":  {Name: "toLower", MinArgs: 1, MaxArgs: 1, result: fixed(schema.TypeString)},
	"trim":     {Name: "trim", MinArgs: 1, MaxArgs: 1, result: fixed(schema.TypeString)},
	"size":     {Name: "size", MinArgs: 1, MaxArgs: 1, result: fixed(schema.TypeInt)},
	"length":   {Name: "length", MinArgs: 1, MaxArgs: 1, result: fixed(schema.TypeInt)},
	"abs":      {Name: "abs", MinArgs: 1, MaxArgs: 1, result: numeric},
	"coalesce": {Name: "coalesce", MinArgs: 1, MaxArgs: -1, result: firstArg},
	"exists":   {Name: "exists", MinArgs: 1, MaxArgs: 1, result: fixed(schema.TypeBool)},
}

// LookupFunction finds a function by name, ignoring case.
func LookupFunction(name string) (*Function, bool) {
	f, ok := functions[strings.ToLower(name)]
	return f, ok
}
