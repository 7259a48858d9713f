package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"500ms", 500 * time.Millisecond, false},
		{"30", 30 * time.Second, false},
		{" 20s ", 20 * time.Second, false},
		{"", 0, false},
		{"-5s", -5 * time.Second, false},
		{"abc", 0, true},
		{"30x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDurationString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDurationString(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDurationString(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_YAMLAndJSON(t *testing.T) {
	yamlData := []byte(`
name: smoke
options:
  stages:
    - duration: 10s
      target: 2
  maxRedirects: 0
requests:
  - url: "{{baseUrl}}/ns/users/{{userId}}"
`)
	jsonData := []byte(`{
  "name": "smoke",
  "options": {"stages": [{"duration": "10s", "target": 2}], "maxRedirects": 0},
  "requests": [{"url": "{{baseUrl}}/ns/users/{{userId}}"}]
}`)

	for _, tc := range []struct {
		path string
		data []byte
	}{
		{"smoke.yaml", yamlData},
		{"smoke.yml", yamlData},
		{"smoke.json", jsonData},
		{"", yamlData},
	} {
		t.Run(tc.path, func(t *testing.T) {
			f, err := Parse(tc.data, tc.path)
			require.NoError(t, err)
			assert.Equal(t, "smoke", f.Name)
			require.Len(t, f.Options.Stages, 1)
			assert.Equal(t, "10s", f.Options.Stages[0].Duration)
			require.NotNil(t, f.Options.MaxRedirects)
			assert.Equal(t, 0, *f.Options.MaxRedirects)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"name": `), "broken.json")
	assert.Error(t, err)

	_, err = Parse([]byte("name: [unclosed"), "broken.yaml")
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDuration_Unmarshal(t *testing.T) {
	var s Settings
	require.NoError(t, yaml.Unmarshal([]byte("timeout: 5s\ngracefulStop: \"10\"\n"), &s))
	assert.Equal(t, 5*time.Second, time.Duration(s.Timeout))
	assert.Equal(t, 10*time.Second, s.GracefulStop.GetDuration(time.Minute))

	var j Settings
	require.NoError(t, json.Unmarshal([]byte(`{"timeout":"250ms"}`), &j))
	assert.Equal(t, 250*time.Millisecond, time.Duration(j.Timeout))
	assert.Equal(t, time.Minute, j.GracefulStop.GetDuration(time.Minute))

	assert.Error(t, json.Unmarshal([]byte(`{"timeout":"soon"}`), &j))

	out, err := json.Marshal(Settings{Timeout: Duration(3 * time.Second)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"timeout":"3s"}`, string(out))
}

func TestMarshal_RoundTrip(t *testing.T) {
	two := 2
	f := &File{
		Name: "export",
		Options: OptionsConfig{
			Stages:       []StageConfig{{Duration: "1m0s", Target: 5}},
			MaxRedirects: &two,
		},
		Requests: []RequestConfig{{Name: "r", Method: "GET", URL: "http://example.com"}},
	}

	dir := t.TempDir()
	for _, name := range []string{"out.yaml", "out.json"} {
		data, err := Marshal(f, name)
		require.NoError(t, err)

		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		back, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, f.Name, back.Name)
		assert.Equal(t, f.Options.Stages, back.Options.Stages)
		assert.Equal(t, 2, *back.Options.MaxRedirects)
		assert.Equal(t, f.Requests[0].URL, back.Requests[0].URL)
	}
}
