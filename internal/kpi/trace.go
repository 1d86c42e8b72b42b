package kpi

// Tracer receives structured events describing what an aggregation looked
// at. It exists for observability only: the engine never branches on it and
// works identically with none attached.
type Tracer func(op string, fields map[string]any)

func (e *Engine) trace(op string, fields map[string]any) {
	if e.tracer != nil {
		e.tracer(op, fields)
	}
}
