package config

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/xdung24/restload/internal/metrics"
	"github.com/xdung24/restload/internal/threshold"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

var validMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Validate checks the whole file and reports every problem at once.
//
// Returns nil if valid, or a *ValidationErrors.
func (f *File) Validate() error {
	errs := &ValidationErrors{}

	if strings.TrimSpace(f.Name) == "" {
		errs.Add("name", "scenario name is required")
	}
	if f.Target.UserID < 0 {
		errs.Add("target.userId", "userId cannot be negative")
	}

	validateOptions(&f.Options, errs)

	if len(f.Requests) == 0 {
		errs.Add("requests", "at least one request is required")
	}
	for i := range f.Requests {
		validateRequest(fmt.Sprintf("requests[%d]", i), &f.Requests[i], errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateOptions(o *OptionsConfig, errs *ValidationErrors) {
	if len(o.Stages) == 0 {
		errs.Add("options.stages", "at least one stage is required")
	}
	for i, st := range o.Stages {
		prefix := fmt.Sprintf("options.stages[%d]", i)
		if st.Duration == "" {
			errs.Add(prefix+".duration", "duration is required")
		} else if d, err := ParseDurationString(st.Duration); err != nil {
			errs.Add(prefix+".duration", err.Error())
		} else if d < 0 {
			errs.Add(prefix+".duration", "duration cannot be negative")
		}
		if st.Target < 0 {
			errs.Add(prefix+".target", "target cannot be negative")
		}
	}

	if o.MaxRedirects != nil && *o.MaxRedirects < 0 {
		errs.Add("options.maxRedirects", "maxRedirects cannot be negative")
	}

	for _, stat := range o.SummaryTrendStats {
		if !metrics.IsTrendStat(stat) {
			errs.Add("options.summaryTrendStats", fmt.Sprintf("unknown trend statistic %q", stat))
		}
	}

	for selector, exprs := range o.Thresholds {
		field := fmt.Sprintf("options.thresholds[%s]", selector)
		ths, err := threshold.Parse(map[string][]string{selector: exprs})
		if err != nil {
			errs.Add(field, err.Error())
			continue
		}
		if err := metrics.CheckThresholds(ths); err != nil {
			errs.Add(field, err.Error())
		}
	}
}

func validateRequest(prefix string, r *RequestConfig, errs *ValidationErrors) {
	if r.URL == "" {
		errs.Add(prefix+".url", "url is required")
	}
	if r.Method != "" && !validMethods[strings.ToUpper(r.Method)] {
		errs.Add(prefix+".method", fmt.Sprintf("unsupported method %q", r.Method))
	}

	check := func(field, s string) {
		for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
			if _, ok := placeholders[m[1]]; !ok {
				errs.Add(field, fmt.Sprintf("unknown placeholder {{%s}}", m[1]))
			}
		}
	}
	check(prefix+".url", r.URL)
	for k, v := range r.Headers {
		check(prefix+".headers."+k, v)
	}
	bodyStrings(r.Body, func(s string) { check(prefix+".body", s) })
}
