// Package catalog builds realistic synthetic fault payloads for each fault kind.
package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// Rand is the random source the catalog draws from. *rand.Rand from
// math/rand/v2 satisfies it. Callers serialize access.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Site locates the fault: the operation whose source frame is innermost.
type Site struct {
	Service   string
	Operation string
}

// generator fills the message and kind-specific frames for one fault.
// Frames returned here sit inside the operation frame, innermost last.
type generator func(site Site, rng Rand) (message string, inner []types.Frame)

type entry struct {
	description string
	generate    generator
}

// Catalog maps fault kinds to payload generators. It is immutable and safe
// for concurrent use.
type Catalog struct {
	entries map[types.FaultKind]entry
}

// New returns the catalog of built-in fault generators.
func New() *Catalog {
	return &Catalog{entries: map[types.FaultKind]entry{
		types.FaultNameError:         {"reference to an undefined variable", genNameError},
		types.FaultKeyError:          {"lookup of a missing dictionary key", genKeyError},
		types.FaultAttributeError:    {"attribute access on a None value", genAttributeError},
		types.FaultZeroDivisionError: {"division by zero in a calculation", genZeroDivision},
		types.FaultTypeError:         {"operation applied to incompatible types", genTypeError},
		types.FaultIndexError:        {"list index out of range", genIndexError},
		types.FaultFileNotFoundError: {"missing file on disk", genFileNotFound},
		types.FaultValueError:        {"invalid literal during conversion", genValueError},
		types.FaultMemoryError:       {"allocation failure on a large dataset", genMemoryError},
		types.FaultImportError:       {"import of a module that is not installed", genImportError},
		types.FaultRecursionError:    {"maximum recursion depth exceeded", genRecursionError},
		types.FaultConnectionError:   {"network connection to a dependency failed", genConnectionError},
	}}
}

// Kinds returns every kind the catalog can generate, in canonical order.
func (c *Catalog) Kinds() []types.FaultKind {
	out := make([]types.FaultKind, 0, len(c.entries))
	for _, k := range types.AllFaultKinds() {
		if _, ok := c.entries[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Describe returns the human-readable description of a kind.
func (c *Catalog) Describe(kind types.FaultKind) (string, error) {
	e, ok := c.entries[kind]
	if !ok {
		return "", &types.NotFoundError{Kind: "fault kind", Name: string(kind)}
	}
	return e.description, nil
}

// Generate builds the payload for one fault of the given kind at site.
func (c *Catalog) Generate(kind types.FaultKind, site Site, rng Rand) (types.Payload, error) {
	e, ok := c.entries[kind]
	if !ok {
		return types.Payload{}, &types.NotFoundError{Kind: "fault kind", Name: string(kind)}
	}

	msg, inner := e.generate(site, rng)

	frames := outerFrames(site, rng)
	frames = append(frames, types.Frame{
		File:     ServiceFile(site.Service),
		Line:     40 + rng.IntN(260),
		Function: site.Operation,
		Code:     operationCode(kind),
	})
	frames = append(frames, inner...)

	return types.Payload{
		FaultKind:  kind,
		Message:    msg,
		Frames:     frames,
		StackTrace: FormatTrace(kind, msg, frames),
	}, nil
}

// OperationFrame returns the frame of the operation that raised the fault.
func OperationFrame(p types.Payload, site Site) (types.Frame, bool) {
	file := ServiceFile(site.Service)
	for _, f := range p.Frames {
		if f.File == file && f.Function == site.Operation {
			return f, true
		}
	}
	return types.Frame{}, false
}

// ServiceFile returns the simulated source path of a service.
func ServiceFile(service string) string {
	return "services/" + snakeCase(service) + ".py"
}

// FormatTrace renders frames in the traceback layout downstream parsers expect.
func FormatTrace(kind types.FaultKind, message string, frames []types.Frame) string {
	var b strings.Builder
	b.WriteString("Traceback (most recent call last):\n")
	for _, f := range frames {
		fmt.Fprintf(&b, "  File \"%s\", line %d, in %s\n", f.File, f.Line, f.Function)
		if f.Code != "" {
			b.WriteString("    " + f.Code + "\n")
		}
	}
	b.WriteString(string(kind))
	if message != "" {
		b.WriteString(": " + message)
	}
	return b.String()
}

var outerPool = []types.Frame{
	{File: "main.py", Function: "<module>", Code: "app.run()"},
	{File: "api_service.py", Function: "handle_request", Code: "result = handler(**params)"},
	{File: "scheduled_error_generator.py", Function: "_generation_loop", Code: "self._generate_once()"},
	{File: "services/base_service.py", Function: "_execute_with_error_handling", Code: "return error_operation()"},
}

// outerFrames picks a varying call chain that always ends in the base
// service wrapper so the operation frame has a stable caller.
func outerFrames(site Site, rng Rand) []types.Frame {
	depth := rng.IntN(3)
	frames := make([]types.Frame, 0, depth+1)
	start := len(outerPool) - 1 - depth
	for _, f := range outerPool[start : len(outerPool)-1] {
		f.Line = 10 + rng.IntN(190)
		frames = append(frames, f)
	}
	wrapper := outerPool[len(outerPool)-1]
	wrapper.Line = 60 + rng.IntN(40)
	return append(frames, wrapper)
}

func operationCode(kind types.FaultKind) string {
	switch kind {
	case types.FaultNameError:
		return `"token": auth_token,`
	case types.FaultKeyError:
		return `"settings": user_data["settings"]`
	case types.FaultAttributeError:
		return "if validation_result.is_valid():"
	case types.FaultZeroDivisionError:
		return "processing_fee = final_amount / fee_divisor"
	case types.FaultTypeError:
		return `formatted_total = "Total: " + total_amount`
	case types.FaultIndexError:
		return "check_digit = card_digits[16]"
	case types.FaultFileNotFoundError:
		return "with open(non_existent_file, 'r') as f:"
	case types.FaultValueError:
		return `transformed_item["value"] = int(item["value"]) * 2`
	case types.FaultMemoryError:
		return `raise MemoryError("Simulated memory error during data aggregation")`
	case types.FaultImportError:
		return "from crypto_utils import generate_secure_token"
	case types.FaultRecursionError:
		return "return self._check_role_hierarchy(role, permission, depth + 1)"
	case types.FaultConnectionError:
		return "response = session_store.refresh(session_id)"
	}
	return ""
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func pick(rng Rand, options []string) string {
	return options[rng.IntN(len(options))]
}
