package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/Suhaibinator/VRouter/pkg/codec"
	"github.com/Suhaibinator/VRouter/pkg/validation"
	"go.uber.org/zap"
)

// IngestionError is a failure to read a request body, classified by the status
// it should produce.
type IngestionError struct {
	Status int
	Err    error
}

// Error implements the error interface.
func (e *IngestionError) Error() string {
	return fmt.Sprintf("%d: %v", e.Status, e.Err)
}

// Unwrap returns the underlying error.
func (e *IngestionError) Unwrap() error { return e.Err }

// ClientError reports whether the failure is the client's fault (4xx).
func (e *IngestionError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// IngestionReporter is notified of every ingestion failure.
type IngestionReporter func(r *http.Request, err *IngestionError)

// BodyParserOptions configures BodyParser.
type BodyParserOptions struct {
	// EnableTypes lists the body types to decode: "json", "form", "text".
	EnableTypes []string `yaml:"enable_types"`
	// Per-type size limits in bytes.
	JSONLimit int64 `yaml:"json_limit"`
	FormLimit int64 `yaml:"form_limit"`
	TextLimit int64 `yaml:"text_limit"`
}

// DefaultBodyParserOptions returns the options used when none are configured.
func DefaultBodyParserOptions() BodyParserOptions {
	return BodyParserOptions{
		EnableTypes: []string{"json", "form"},
		JSONLimit:   1 << 20,
		FormLimit:   56 << 10,
		TextLimit:   1 << 20,
	}
}

// MultipartOptions configures Multipart. Zero limits disable the check.
type MultipartOptions struct {
	// MaxMemory is the part of the form kept in memory; the rest spills to temporary files.
	MaxMemory int64 `yaml:"max_memory"`
	// MaxFields limits the number of non-file values.
	MaxFields int `yaml:"max_fields"`
	// MaxFieldsSize limits the total size of non-file values in bytes.
	MaxFieldsSize int64 `yaml:"max_fields_size"`
	// MaxFiles limits the number of uploaded files.
	MaxFiles int `yaml:"max_files"`
	// MaxFileSize limits the size of each file in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
	// MaxTotalSize limits the combined size of all files in bytes.
	MaxTotalSize int64 `yaml:"max_total_size"`
	// AllowEmptyFiles accepts zero-length uploads.
	AllowEmptyFiles bool `yaml:"allow_empty_files"`
}

// DefaultMultipartOptions returns the options used when none are configured.
func DefaultMultipartOptions() MultipartOptions {
	return MultipartOptions{
		MaxMemory:     32 << 20,
		MaxFields:     1000,
		MaxFieldsSize: 20 << 20,
		MaxFileSize:   200 << 20,
		MaxTotalSize:  200 << 20,
	}
}

func (o BodyParserOptions) limit(c codec.Codec) (int64, bool) {
	var name string
	var limit int64
	switch c {
	case codec.JSON:
		name, limit = "json", o.JSONLimit
	case codec.Form:
		name, limit = "form", o.FormLimit
	case codec.Text:
		name, limit = "text", o.TextLimit
	default:
		return 0, false
	}
	return limit, slices.Contains(o.EnableTypes, name)
}

// BodyParser decodes JSON, urlencoded and text bodies into the body facet.
// Other content types, and types not enabled, pass through with the body facet
// left unset. The raw body stays readable by downstream handlers.
func BodyParser(opts BodyParserOptions, report IngestionReporter, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := codec.Lookup(r.Header.Get("Content-Type"))
			if err != nil || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			limit, enabled := opts.limit(c)
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			body := r.Body
			if limit > 0 {
				body = http.MaxBytesReader(w, r.Body, limit)
			}
			raw, err := io.ReadAll(body)
			_ = r.Body.Close()
			var value any
			if err == nil {
				value, err = c.Decode(bytes.NewReader(raw))
				if err != nil {
					err = &IngestionError{Status: http.StatusBadRequest, Err: err}
				}
			}
			if err != nil {
				fail(w, r, classify(err), report, logger)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(raw))
			r, facets := validation.Attach(r)
			facets.Body = value
			next.ServeHTTP(w, r)
		})
	}
}

// Multipart parses multipart bodies into the body and files facets. Field values
// become strings, or []any when repeated; files become *multipart.FileHeader, or
// []any when repeated. Non-multipart requests pass through.
//
// Client failures (malformed bodies, exceeded limits) answer with their 4xx status
// without calling next. Anything else answers a plain 500. Temporary files are
// removed once next returns.
func Multipart(opts MultipartOptions, report IngestionReporter, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(codec.MediaType(r.Header.Get("Content-Type")), "multipart/") {
				next.ServeHTTP(w, r)
				return
			}

			if opts.MaxTotalSize > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, opts.MaxTotalSize+opts.MaxFieldsSize+(1<<20))
			}
			maxMemory := opts.MaxMemory
			if maxMemory <= 0 {
				maxMemory = 32 << 20
			}
			if err := r.ParseMultipartForm(maxMemory); err != nil {
				if r.MultipartForm != nil {
					_ = r.MultipartForm.RemoveAll()
				}
				fail(w, r, classify(err), report, logger)
				return
			}
			form := r.MultipartForm
			defer func() {
				if err := form.RemoveAll(); err != nil {
					logger.Warn("Failed to remove multipart temporary files", append(requestFields(r), zap.Error(err))...)
				}
			}()

			if err := opts.check(form); err != nil {
				fail(w, r, err, report, logger)
				return
			}

			r, facets := validation.Attach(r)
			facets.Body = codec.Values(form.Value)
			facets.Files = files(form.File)
			next.ServeHTTP(w, r)
		})
	}
}

func (o MultipartOptions) check(form *multipart.Form) *IngestionError {
	tooLarge := func(format string, args ...any) *IngestionError {
		return &IngestionError{Status: http.StatusRequestEntityTooLarge, Err: fmt.Errorf(format, args...)}
	}

	fields := 0
	var fieldsSize int64
	for _, vs := range form.Value {
		fields += len(vs)
		for _, v := range vs {
			fieldsSize += int64(len(v))
		}
	}
	if o.MaxFields > 0 && fields > o.MaxFields {
		return tooLarge("multipart: %d fields exceed the limit of %d", fields, o.MaxFields)
	}
	if o.MaxFieldsSize > 0 && fieldsSize > o.MaxFieldsSize {
		return tooLarge("multipart: fields of %d bytes exceed the limit of %d", fieldsSize, o.MaxFieldsSize)
	}

	count := 0
	var total int64
	for name, fhs := range form.File {
		for _, fh := range fhs {
			count++
			total += fh.Size
			if o.MaxFileSize > 0 && fh.Size > o.MaxFileSize {
				return tooLarge("multipart: file %q of %d bytes exceeds the limit of %d", name, fh.Size, o.MaxFileSize)
			}
			if fh.Size == 0 && !o.AllowEmptyFiles {
				return &IngestionError{Status: http.StatusBadRequest, Err: fmt.Errorf("multipart: file %q is empty", name)}
			}
		}
	}
	if o.MaxFiles > 0 && count > o.MaxFiles {
		return tooLarge("multipart: %d files exceed the limit of %d", count, o.MaxFiles)
	}
	if o.MaxTotalSize > 0 && total > o.MaxTotalSize {
		return tooLarge("multipart: files of %d bytes exceed the limit of %d", total, o.MaxTotalSize)
	}
	return nil
}

func files(in map[string][]*multipart.FileHeader) map[string]any {
	out := make(map[string]any, len(in))
	for name, fhs := range in {
		switch len(fhs) {
		case 0:
		case 1:
			out[name] = fhs[0]
		default:
			items := make([]any, len(fhs))
			for i, fh := range fhs {
				items[i] = fh
			}
			out[name] = items
		}
	}
	return out
}

// classify maps a body reading error onto an IngestionError. Errors it does not
// recognise are server errors.
func classify(err error) *IngestionError {
	var ie *IngestionError
	if errors.As(err, &ie) {
		return ie
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), errors.Is(err, multipart.ErrMessageTooLarge):
		return &IngestionError{Status: http.StatusRequestEntityTooLarge, Err: err}
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF),
		strings.HasPrefix(err.Error(), "multipart: "), strings.HasPrefix(err.Error(), "mime: "):
		return &IngestionError{Status: http.StatusBadRequest, Err: err}
	}
	return &IngestionError{Status: http.StatusInternalServerError, Err: err}
}

func fail(w http.ResponseWriter, r *http.Request, err *IngestionError, report IngestionReporter, logger *zap.Logger) {
	if report != nil {
		report(r, err)
	}
	if err.ClientError() {
		logger.Warn("Request body rejected", append(requestFields(r), zap.Int("status", err.Status), zap.Error(err.Err))...)
		http.Error(w, http.StatusText(err.Status), err.Status)
		return
	}
	logger.Error("Failed to read request body", append(requestFields(r), zap.Error(err.Err))...)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
