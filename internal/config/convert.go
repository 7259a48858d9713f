package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/xdung24/restload/internal/scenario"
)

// placeholders lists the names usable as {{name}} in urls, headers and bodies.
var placeholders = map[string]struct{}{
	"baseUrl": {},
	"userId":  {},
	"token":   {},
}

// ResolveTarget layers the file's target and override over the defaults.
func (f *File) ResolveTarget(override scenario.Target) scenario.Target {
	return scenario.DefaultTarget().
		Merge(scenario.Target{BaseURL: f.Target.BaseURL, UserID: f.Target.UserID, Token: f.Target.Token}).
		Merge(override)
}

// ToScenario validates the file and turns it into a runnable scenario.
// Non-zero fields of override win over the file's target.
func (f *File) ToScenario(override scenario.Target) (*scenario.Scenario, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	target := f.ResolveTarget(override)
	values := map[string]string{
		"baseUrl": strings.TrimRight(target.BaseURL, "/"),
		"userId":  strconv.Itoa(target.UserID),
		"token":   target.Token,
	}

	opts, err := f.Options.toOptions()
	if err != nil {
		return nil, err
	}

	reqs := make([]scenario.RequestSpec, 0, len(f.Requests))
	for i, rc := range f.Requests {
		req, err := rc.toRequest(values)
		if err != nil {
			return nil, fmt.Errorf("requests[%d]: %w", i, err)
		}
		if req.Name == "" {
			req.Name = fmt.Sprintf("%s_request_%d", f.Name, i+1)
		}
		reqs = append(reqs, req)
	}

	sc := &scenario.Scenario{
		Name:        f.Name,
		Description: f.Description,
		Options:     opts,
		Iteration:   scenario.Static(reqs...),
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func (o OptionsConfig) toOptions() (scenario.Options, error) {
	opts := scenario.Options{
		MaxRedirects:          scenario.DefaultMaxRedirects,
		DiscardResponseBodies: o.DiscardResponseBodies,
		SummaryTrendStats:     append([]string(nil), o.SummaryTrendStats...),
	}
	if o.MaxRedirects != nil {
		opts.MaxRedirects = *o.MaxRedirects
	}

	for i, st := range o.Stages {
		d, err := ParseDurationString(st.Duration)
		if err != nil {
			return scenario.Options{}, fmt.Errorf("options.stages[%d]: %w", i, err)
		}
		opts.Stages = append(opts.Stages, scenario.RampStage{Duration: d, Target: st.Target})
	}

	if len(o.Thresholds) > 0 {
		opts.Thresholds = make(scenario.Thresholds, len(o.Thresholds))
		for k, v := range o.Thresholds {
			opts.Thresholds[k] = append([]string(nil), v...)
		}
	}
	return opts, nil
}

func (rc RequestConfig) toRequest(values map[string]string) (scenario.RequestSpec, error) {
	req := scenario.RequestSpec{
		Name:   rc.Name,
		Method: strings.ToUpper(rc.Method),
		URL:    resolve(rc.URL, values),
	}

	u, err := url.Parse(req.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return scenario.RequestSpec{}, fmt.Errorf("invalid url %q", req.URL)
	}

	if len(rc.Headers) > 0 {
		req.Headers = make(map[string]string, len(rc.Headers))
		for k, v := range rc.Headers {
			req.Headers[k] = resolve(v, values)
		}
	}

	switch body := rc.Body.(type) {
	case nil:
	case string:
		req.Body = []byte(resolve(body, values))
	default:
		if ordered := rc.orderedBody(); ordered != nil {
			req.Body = resolveJSON(ordered, values)
			break
		}
		data, err := json.Marshal(resolveValue(body, values))
		if err != nil {
			return scenario.RequestSpec{}, fmt.Errorf("encode body: %w", err)
		}
		req.Body = data
	}

	return req, nil
}

// orderedBody returns the body in file order, unless Body was replaced
// after decoding.
func (rc RequestConfig) orderedBody() []byte {
	if len(rc.ordered) == 0 {
		return nil
	}
	current, err := json.Marshal(rc.Body)
	if err != nil {
		return nil
	}
	var a, b interface{}
	if json.Unmarshal(current, &a) != nil || json.Unmarshal(rc.ordered, &b) != nil {
		return nil
	}
	if !reflect.DeepEqual(a, b) {
		return nil
	}
	return rc.ordered
}

func resolve(s string, values map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := values[name]; ok {
			return v
		}
		return m
	})
}

// resolveValue substitutes placeholders in every string of a decoded body.
func resolveValue(v interface{}, values map[string]string) interface{} {
	switch t := v.(type) {
	case string:
		return resolve(t, values)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = resolveValue(val, values)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = resolveValue(val, values)
		}
		return out
	default:
		return v
	}
}

// FromScenario describes a built-in scenario as a file, with the requests of
// one iteration fully resolved.
func FromScenario(sc *scenario.Scenario) *File {
	maxRedirects := sc.Options.MaxRedirects
	f := &File{
		Name:        sc.Name,
		Description: sc.Description,
		Options: OptionsConfig{
			MaxRedirects:          &maxRedirects,
			DiscardResponseBodies: sc.Options.DiscardResponseBodies,
			SummaryTrendStats:     append([]string(nil), sc.Options.SummaryTrendStats...),
		},
	}

	for _, st := range sc.Options.Stages {
		f.Options.Stages = append(f.Options.Stages, StageConfig{Duration: st.Duration.String(), Target: st.Target})
	}
	if len(sc.Options.Thresholds) > 0 {
		f.Options.Thresholds = make(map[string][]string, len(sc.Options.Thresholds))
		for k, v := range sc.Options.Thresholds {
			f.Options.Thresholds[k] = append([]string(nil), v...)
		}
	}

	for _, req := range sc.Iteration() {
		rc := RequestConfig{
			Name:    req.Name,
			Method:  req.Method,
			URL:     req.URL,
			Headers: req.Headers,
		}
		if len(req.Body) > 0 {
			rc.Body = string(req.Body)
			// a structured body only when re-encoding keeps the exact bytes
			var decoded interface{}
			if json.Unmarshal(req.Body, &decoded) == nil {
				if again, err := json.Marshal(decoded); err == nil && bytes.Equal(again, req.Body) {
					rc.Body = decoded
				}
			}
		}
		f.Requests = append(f.Requests, rc)
	}

	return f
}
