package errors

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
// Codes are dot-separated; the last segment is the reason.
type Code string

const (
	CodeCorpusUnavailable    Code = "retrieval.corpus.unavailable"
	CodeIndexCorrupt         Code = "retrieval.index.corrupt"
	CodeQueryInvalid         Code = "retrieval.query.invalid_input"
	CodeIndexBuildFailure    Code = "retrieval.index.build.failure"
	CodeEmbeddingUpstream    Code = "embedding.upstream.failure"
	CodeEmbeddingResponse    Code = "embedding.response.invalid"
	CodeEmbeddingInputEmpty  Code = "embedding.request.invalid_input"
	CodeOrdersStoreFailure   Code = "orders.store.failure"
	CodeOrdersImportInvalid  Code = "orders.import.invalid_input"
	CodePromptRenderFailure  Code = "prompt.render.failure"
	CodeConfigLoadFailure    Code = "config.load.read.failure"
	CodeConfigParseInvalid   Code = "config.parse.invalid_format"
	CodeConfigValidate       Code = "config.validate.invalid_value"
	CodeCLIInputInvalid      Code = "cli.input.invalid"
	CodeCLISetupFailure      Code = "cli.setup.failure"
	CodeInternalFailure      Code = "internal.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldPath(path string) Attr {
	return Field("path", path)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).Wrapf(err, format, args...)
}

// CodeOf returns the outermost code in the chain, or "" for plain errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch c := oopsErr.Code().(type) {
	case Code:
		return c
	case string:
		return Code(c)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", c))
	}
}

// FieldsOf returns the structured context collected along the chain.
func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsCorpusUnavailable(err error) bool {
	return HasCode(err, CodeCorpusUnavailable)
}

func IsCorruptIndex(err error) bool {
	return HasCode(err, CodeIndexCorrupt)
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}
	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
