package shadergraph

import (
	"errors"
	"fmt"

	"github.com/gogpu/shadergraph/export"
	"github.com/gogpu/shadergraph/expr"
	"github.com/gogpu/shadergraph/internal/graph"
	"github.com/gogpu/shadergraph/plan"
	"github.com/gogpu/shadergraph/prepare"
	"github.com/gogpu/shadergraph/resolve"
	"github.com/gogpu/shadergraph/scene"
	"github.com/gogpu/shadergraph/schema"
	"github.com/gogpu/shadergraph/shaderspace"
)

// Error kinds, for use with errors.Is. Each is the sentinel of the
// package that reports it.
var (
	ErrSceneParse           = scene.ErrSceneParse
	ErrSchemaValidation     = schema.ErrSchemaValidation
	ErrSchemaTypeMismatch   = schema.ErrTypeMismatch
	ErrCycleDetected        = graph.ErrCycleDetected
	ErrNoOutput             = prepare.ErrNoOutput
	ErrInvalidResolution    = prepare.ErrInvalidResolution
	ErrUnresolvedTarget     = resolve.ErrUnresolvedTarget
	ErrMissingInput         = expr.ErrMissingInput
	ErrTypeMismatch         = expr.ErrTypeMismatch
	ErrUnsupportedParam     = expr.ErrUnsupportedParam
	ErrTranslationFailed    = expr.ErrTranslation
	ErrResourceConflict     = plan.ErrResourceConflict
	ErrImageDecode          = plan.ErrImageDecode
	ErrShaderCompile        = shaderspace.ErrShaderCompile
	ErrExportFormatMismatch = export.ErrFormatMismatch

	// ErrInternal is matched by *PanicError.
	ErrInternal = errors.New("shadergraph: internal error")
)

// PanicError is a panic recovered during compilation.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("shadergraph: compile panicked: %v", e.Value)
}

// Is reports ErrInternal equivalence.
func (e *PanicError) Is(target error) bool { return target == ErrInternal }

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrSceneParse, "scene_parse"},
	{ErrSchemaTypeMismatch, "type_mismatch"},
	{ErrSchemaValidation, "schema_validation"},
	{ErrCycleDetected, "cycle_detected"},
	{ErrNoOutput, "no_output"},
	{ErrInvalidResolution, "invalid_resolution"},
	{ErrUnresolvedTarget, "unresolved_target"},
	{ErrMissingInput, "missing_input"},
	{ErrTypeMismatch, "type_mismatch"},
	{ErrUnsupportedParam, "unsupported_param"},
	{ErrTranslationFailed, "translation_failed"},
	{ErrResourceConflict, "resource_conflict"},
	{ErrImageDecode, "image_decode"},
	{ErrShaderCompile, "shader_compile"},
	{ErrExportFormatMismatch, "export_format_mismatch"},
	{ErrInternal, "internal"},
}

// ErrorKind returns a short label for err, suitable as a metric label.
// It returns "" for nil and "other" for unclassified errors.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "other"
}
