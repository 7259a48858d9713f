package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFile() *File {
	return &File{
		Name: "valid",
		Options: OptionsConfig{
			Stages:     []StageConfig{{Duration: "30s", Target: 10}, {Duration: "20s", Target: 0}},
			Thresholds: map[string][]string{"http_req_duration": {"p(99) < 1000"}},
		},
		Requests: []RequestConfig{{
			Name:   "get_user",
			Method: "GET",
			URL:    "{{baseUrl}}/ns/users/{{userId}}",
		}},
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validFile().Validate())
}

func TestValidate_Errors(t *testing.T) {
	negative := -1

	tests := []struct {
		name   string
		mutate func(f *File)
		field  string
	}{
		{"missing name", func(f *File) { f.Name = " " }, "name"},
		{"negative user", func(f *File) { f.Target.UserID = -3 }, "target.userId"},
		{"no stages", func(f *File) { f.Options.Stages = nil }, "options.stages"},
		{"bad duration", func(f *File) { f.Options.Stages[0].Duration = "soon" }, "options.stages[0].duration"},
		{"empty duration", func(f *File) { f.Options.Stages[1].Duration = "" }, "options.stages[1].duration"},
		{"negative duration", func(f *File) { f.Options.Stages[0].Duration = "-1s" }, "options.stages[0].duration"},
		{"negative target", func(f *File) { f.Options.Stages[0].Target = -1 }, "options.stages[0].target"},
		{"negative redirects", func(f *File) { f.Options.MaxRedirects = &negative }, "options.maxRedirects"},
		{"bad trend stat", func(f *File) { f.Options.SummaryTrendStats = []string{"avg", "stddev"} }, "options.summaryTrendStats"},
		{"bad expression", func(f *File) { f.Options.Thresholds["http_req_duration"] = []string{"p(99) <"} }, "options.thresholds[http_req_duration]"},
		{"unknown metric", func(f *File) { f.Options.Thresholds["http_req_waiting"] = []string{"avg < 10"} }, "options.thresholds[http_req_waiting]"},
		{"bad aggregation", func(f *File) { f.Options.Thresholds["http_req_failed"] = []string{"p(95) < 1"} }, "options.thresholds[http_req_failed]"},
		{"no requests", func(f *File) { f.Requests = nil }, "requests"},
		{"missing url", func(f *File) { f.Requests[0].URL = "" }, "requests[0].url"},
		{"bad method", func(f *File) { f.Requests[0].Method = "FETCH" }, "requests[0].method"},
		{"unknown placeholder", func(f *File) { f.Requests[0].URL = "{{host}}/ns/users/1" }, "requests[0].url"},
		{"unknown nested body placeholder", func(f *File) {
			f.Requests[0].Body = map[string]interface{}{
				"user": map[string]interface{}{"tags": []interface{}{"ok", "{{tenant}}"}},
			}
		}, "requests[0].body"},
		{"unknown header placeholder", func(f *File) {
			f.Requests[0].Headers = map[string]string{"X-Api-Key": "{{apiKey}}"}
		}, "requests[0].headers.X-Api-Key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFile()
			tt.mutate(f)

			err := f.Validate()
			require.Error(t, err)

			var verrs *ValidationErrors
			require.True(t, errors.As(err, &verrs))

			found := false
			for _, e := range verrs.Errors {
				if e.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected error on %s, got %v", tt.field, err)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	f := &File{}
	err := f.Validate()
	require.Error(t, err)

	var verrs *ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs.Errors, 3)
	assert.True(t, strings.HasPrefix(err.Error(), "3 validation errors:"))
}

func TestValidationError_Error(t *testing.T) {
	assert.Equal(t, "validation error on field 'name': required", (&ValidationError{Field: "name", Message: "required"}).Error())
	assert.Equal(t, "validation error: boom", (&ValidationError{Message: "boom"}).Error())
	assert.Equal(t, "no validation errors", (&ValidationErrors{}).Error())
}
