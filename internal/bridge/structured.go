package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/sethvargo/go-retry"
	"github.com/xeipuuv/gojsonschema"

	"litertd/pkg/types"
)

// SchemaPlaceholder is substituted with the serialized JSON Schema inside a
// caller-supplied system prompt template.
const SchemaPlaceholder = "{{schema}}"

// StructuredOptions tunes a structured-output call.
type StructuredOptions struct {
	// MaxRetries bounds the generate-and-validate attempts. Defaults to 3.
	MaxRetries int
	// SystemPromptTemplate, when set, must contain SchemaPlaceholder.
	SystemPromptTemplate string
}

// retriableOutputError marks a parse or validation failure: the engine
// produced output, it just did not conform. Distinct from hard engine
// errors, which are never retried here.
type retriableOutputError struct{ msg string }

func (e retriableOutputError) Error() string { return e.msg }

// marshalSchema serializes a request schema document, rejecting empty ones.
func marshalSchema(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("schema is required")
	}
	return json.Marshal(m)
}

// ReflectSchema derives a JSON Schema document from a Go value using
// reflection. Convenience for library callers; the HTTP surface passes raw
// schema documents through.
func ReflectSchema(v any) (json.RawMessage, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	s := r.Reflect(v)
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return b, nil
}

// GenerateStructured runs up to MaxRetries native structured-generation
// calls until one produces JSON that parses and validates against schema.
// Exhausting the budget is a reported outcome (finish reason
// "validation_failed"), not an error; a missing engine capability is raised
// immediately since retrying cannot change it. The caller context is
// checked before every attempt.
func (b *Bridge) GenerateStructured(ctx context.Context, sessionID string, messages []types.Message, schemaJSON json.RawMessage, opts StructuredOptions) (types.StructuredResult, error) {
	var zero types.StructuredResult
	entry, err := b.registry.entry(sessionID)
	if err != nil {
		return zero, err
	}
	if !b.eng.SupportsStructuredOutput() {
		return zero, ErrUnsupported("structured output")
	}
	if len(schemaJSON) == 0 || !json.Valid(schemaJSON) {
		return zero, fmt.Errorf("schema must be a valid JSON document")
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = b.cfg.maxRetries()
	}
	systemPrompt := ""
	if opts.SystemPromptTemplate != "" {
		if !strings.Contains(opts.SystemPromptTemplate, SchemaPlaceholder) {
			return zero, fmt.Errorf("system prompt template missing %s placeholder", SchemaPlaceholder)
		}
		systemPrompt = strings.ReplaceAll(opts.SystemPromptTemplate, SchemaPlaceholder, string(schemaJSON))
	}

	if err := b.attachMedia(entry, messages); err != nil {
		return zero, err
	}
	prompt := flattenMessages(messages)

	// One admission slot covers the whole retry loop: each attempt is a
	// generation on the same handle.
	release, err := b.beginGeneration(ctx, entry)
	if err != nil {
		if canceled(err) {
			return zero, ErrAlreadyAborted()
		}
		return zero, err
	}
	defer release()

	schemaLoader := gojsonschema.NewBytesLoader(schemaJSON)
	attempts := 0
	var diags strings.Builder
	var out types.StructuredResult

	backoff := retry.WithMaxRetries(uint64(maxRetries-1), retry.NewConstant(time.Millisecond))
	retryErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		structuredAttempts.Inc()
		requestID := b.alloc.Next()
		entry.touch(requestID)
		raw, err := b.eng.GenerateStructuredOutput(ctx, entry.handle, requestID, prompt, string(schemaJSON), systemPrompt)
		if err != nil {
			// Capability and hard engine failures are final.
			if IsUnsupported(err) {
				return ErrUnsupported("structured output")
			}
			if canceled(err) {
				return err
			}
			return ErrEngine(err.Error())
		}
		var parsed map[string]any
		if uerr := json.Unmarshal([]byte(raw), &parsed); uerr != nil {
			fmt.Fprintf(&diags, "attempt %d: output is not valid JSON: %v\n", attempts, uerr)
			return retry.RetryableError(retriableOutputError{msg: uerr.Error()})
		}
		res, verr := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(raw))
		if verr != nil {
			fmt.Fprintf(&diags, "attempt %d: schema validation errored: %v\n", attempts, verr)
			return retry.RetryableError(retriableOutputError{msg: verr.Error()})
		}
		if !res.Valid() {
			// Accumulate every failing field path so the final report
			// names all mismatches, not just the first.
			fmt.Fprintf(&diags, "attempt %d: output did not match schema:\n", attempts)
			for _, fe := range res.Errors() {
				fmt.Fprintf(&diags, "- %s: %s\n", fe.Field(), fe.Description())
			}
			return retry.RetryableError(retriableOutputError{msg: "schema mismatch"})
		}
		out = types.StructuredResult{
			Data:         parsed,
			RawJSON:      raw,
			Attempts:     attempts,
			FinishReason: types.FinishStop,
		}
		return nil
	})

	if retryErr != nil {
		var soft retriableOutputError
		if errors.As(retryErr, &soft) {
			// Budget exhausted on parse/validation failures: reported, not
			// raised.
			return types.StructuredResult{
				Attempts:     attempts,
				FinishReason: types.FinishValidationFailed,
				Diagnostics:  diags.String(),
			}, nil
		}
		if canceled(retryErr) {
			return zero, ErrAborted()
		}
		return zero, retryErr
	}
	out.Diagnostics = diags.String()
	return out, nil
}
