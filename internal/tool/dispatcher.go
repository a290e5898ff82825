package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	xerrors "ChainPilot/internal/errors"
	"ChainPilot/pkg/logger"
)

// Dispatcher resolves tool calls against the catalog, validates their
// arguments, and normalizes every outcome into a string payload. Callers
// never receive a raised error: the orchestrator must always have something
// to feed back to the model.
type Dispatcher struct {
	catalog   *Catalog
	validator *schemaValidator
	log       *slog.Logger
}

// NewDispatcher builds a dispatcher over the given catalog.
func NewDispatcher(catalog *Catalog) *Dispatcher {
	return &Dispatcher{
		catalog:   catalog,
		validator: newSchemaValidator(),
		log:       logger.Named("dispatcher"),
	}
}

// Dispatch resolves and executes the named tool. Unknown tools and schema
// violations short-circuit before the handler runs; handler errors and
// panics are converted into structured failure payloads.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) string {
	t, ok := d.catalog.Lookup(name)
	if !ok {
		d.log.Warn("tool not in catalog", slog.String("tool", name))
		return Fail(xerrors.CodeUnknownTool, fmt.Sprintf("tool %q is not registered", name)).Render()
	}

	violation, err := d.validator.validate(t.Definition, args)
	if err != nil {
		d.log.Error("parameter schema rejected", slog.String("tool", name), slog.Any("error", err))
		return Fail(xerrors.CodeInvalidArguments, "tool parameter schema is invalid").Render()
	}
	if violation != "" {
		d.log.Warn("argument validation failed", slog.String("tool", name), slog.String("violation", violation))
		return Fail(xerrors.CodeInvalidArguments, violation).Render()
	}

	output, err := d.invoke(ctx, t, args)
	if err != nil {
		d.log.Warn("tool execution failed", slog.String("tool", name), slog.Any("error", err))
		return FailFromError(err).Render()
	}
	return output
}

// invoke runs the handler with panic containment.
func (d *Dispatcher) invoke(ctx context.Context, t Tool, args json.RawMessage) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("tool handler panicked", slog.String("tool", t.Definition.Name), slog.Any("panic", r))
			output = ""
			err = xerrors.New(xerrors.CodeUnknown, fmt.Sprintf("tool %s aborted unexpectedly", t.Definition.Name))
		}
	}()
	return t.Handler(ctx, args)
}
