package validation

import (
	"context"
	"net/http"

	"github.com/Suhaibinator/VRouter/pkg/codec"
	"github.com/Suhaibinator/VRouter/pkg/common"
	"github.com/Suhaibinator/VRouter/pkg/schema"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// Reporter is notified of every request the stage rejects, and of input failures
// let through by ContinueOnError (status 0).
type Reporter func(r *http.Request, status int, failures Failures)

// Config controls how the stage disposes of failures.
type Config struct {
	// ExposeRequestErrors writes failed input facets into the 400 response body.
	ExposeRequestErrors bool
	// ExposeResponseErrors writes the response failure into the 500 response body.
	ExposeResponseErrors bool
	// ContinueOnError never rejects on input failures; see Invalid.
	ContinueOnError bool
	// Multipart enables validation of the files facet.
	Multipart bool

	Logger   *zap.Logger
	Reporter Reporter
}

type result struct {
	value any
	err   error
}

// New builds the validation middleware for spec.
//
// A spec without schemas yields a middleware that only calls next. Otherwise the
// configured input facets are validated concurrently and failures are handled in
// this order: ContinueOnError records them and calls next, ExposeRequestErrors
// answers 400 with {"error": [...]}, and the fallback answers 400 with an empty body.
// When every facet passes, coerced values are merged into the request facets.
//
// With a Response schema the downstream output is buffered, validated and
// replaced by the schema output, which drops undeclared fields. A failure answers
// 500, with {"error": [...]} only when ExposeResponseErrors is set.
func New(spec *Spec, cfg Config) common.Middleware {
	if spec.IsZero() {
		return func(next http.Handler) http.Handler { return next }
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	report := cfg.Reporter
	if report == nil {
		report = func(*http.Request, int, Failures) {}
	}
	continueOnError := cfg.ContinueOnError || spec.ContinueOnError
	inputs := spec.inputs(cfg.Multipart)
	response := spec.Response

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, facets := Attach(r)

			if len(inputs) > 0 {
				results, err := validateInputs(r.Context(), inputs, facets)
				if err != nil {
					logger.Debug("Request abandoned during validation",
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Error(err),
					)
					return
				}

				var failures Failures
				for i, res := range results {
					if res.err != nil {
						failures = append(failures, Failure{Facet: inputs[i].facet, Err: res.err})
					}
				}

				switch {
				case continueOnError:
					for i, res := range results {
						if res.err == nil {
							facets.merge(inputs[i].facet, res.value)
						}
					}
					facets.invalid = failures
					if len(failures) > 0 {
						report(r, 0, failures)
					}
				case len(failures) > 0:
					report(r, http.StatusBadRequest, failures)
					writeFailures(w, http.StatusBadRequest, failures, cfg.ExposeRequestErrors, logger)
					return
				default:
					for i, res := range results {
						facets.merge(inputs[i].facet, res.value)
					}
					facets.invalid = nil
				}
			}

			if response == nil {
				next.ServeHTTP(w, r)
				return
			}

			buf := newBufferedWriter(w)
			next.ServeHTTP(buf, r)
			if r.Context().Err() != nil {
				return
			}
			validateResponse(w, r, buf, response, cfg.ExposeResponseErrors, report, logger)
		})
	}
}

// validateInputs runs every input schema on its own goroutine and waits for all
// of them. A panic in a schema is re-raised here. If the request context ends
// first, the results are discarded.
func validateInputs(ctx context.Context, inputs []facetSchema, facets *Facets) ([]result, error) {
	results := make([]result, len(inputs))
	var wg conc.WaitGroup
	for i, in := range inputs {
		raw := facets.Value(in.facet)
		wg.Go(func() {
			v, err := in.schema.Parse(ctx, raw)
			results[i] = result{value: v, err: err}
		})
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func validateResponse(w http.ResponseWriter, r *http.Request, buf *bufferedWriter, s schema.Schema, expose bool, report Reporter, logger *zap.Logger) {
	body, isJSON, err := buf.value()
	if err == nil {
		body, err = s.Parse(r.Context(), body)
	}
	if err != nil {
		failures := Failures{{Facet: Response, Err: err}}
		report(r, http.StatusInternalServerError, failures)
		writeFailures(w, http.StatusInternalServerError, failures, expose, logger)
		return
	}

	buf.commitHeader(w)
	status := buf.statusCode()
	if text, ok := body.(string); ok && !isJSON {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(text))
		return
	}
	if body == nil && buf.body.Len() == 0 {
		w.WriteHeader(status)
		return
	}
	if err := codec.JSON.Encode(w, status, body); err != nil {
		logger.Error("Failed to encode validated response",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

func writeFailures(w http.ResponseWriter, status int, failures Failures, expose bool, logger *zap.Logger) {
	if !expose {
		w.WriteHeader(status)
		return
	}
	if err := codec.JSON.Encode(w, status, ErrorBody{Error: failures}); err != nil {
		logger.Error("Failed to encode validation failures", zap.Error(err))
	}
}
