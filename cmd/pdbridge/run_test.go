package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	code    int
	records []map[string]any
	stderr  string
}

func invoke(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	t.Setenv("PDBRIDGE_CONFIG", "")
	t.Setenv("PDBRIDGE_LOG_LEVEL", "")
	t.Setenv("PDBRIDGE_CODEC", "")
	t.Setenv("PDBRIDGE_METRICS_ADDR", "")

	var stdout, stderr bytes.Buffer
	code := execute(args, strings.NewReader(stdin), &stdout, &stderr)

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(stdout.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), "stdout line %q", line)
		records = append(records, rec)
	}
	return result{code: code, records: records, stderr: stderr.String()}
}

func writeScript(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

// TEST600: Test a missing script path yields ready then one error record and exit 1
func Test600_no_script(t *testing.T) {
	res := invoke(t, "")
	assert.Equal(t, 1, res.code)
	assert.Equal(t, []map[string]any{
		{"type": "ready"},
		{"type": "error", "message": "No script specified"},
	}, res.records)
}

// TEST601: Test an unreadable script is a load failure
func Test601_missing_script_file(t *testing.T) {
	res := invoke(t, "", filepath.Join(t.TempDir(), "nope.js"))
	assert.Equal(t, 1, res.code)
	require.Len(t, res.records, 2)
	assert.Equal(t, "ready", res.records[0]["type"])
	msg := res.records[1]["message"].(string)
	assert.True(t, strings.HasPrefix(msg, "Failed to load script: "), msg)
	assert.Contains(t, msg, "nope.js")
}

// TEST602: Test a script that throws while loading reports the thrown message
func Test602_script_throws_on_load(t *testing.T) {
	path := writeScript(t, "throw.js", `throw new Error('boom');`)
	res := invoke(t, "", path)
	assert.Equal(t, 1, res.code)
	require.Len(t, res.records, 2)
	assert.Equal(t, "Failed to load script: boom", res.records[1]["message"])
}

// TEST603: Test end to end message handling until end of input
func Test603_end_to_end(t *testing.T) {
	path := writeScript(t, "hello.js", `
		const pd = require('pd-api');
		pd.on('bang', () => pd.outlet(0, 'hello'));
		pd.on('float', (inlet, n) => pd.outlet(0, n * 2));
		pd.on('anything', (inlet, ...args) => pd.post('got', pd.messagename, args.length));
	`)
	input := `{"type":"message","inlet":0,"selector":"bang","args":[]}` + "\n" +
		`{"type":"message","inlet":0,"selector":"float","args":[21]}` + "\n" +
		`{"type":"message","inlet":0,"selector":"foo","args":[1,2]}` + "\n"

	res := invoke(t, input, path)
	assert.Equal(t, 0, res.code, res.stderr)
	require.Len(t, res.records, 4)
	assert.Equal(t, "ready", res.records[0]["type"])
	assert.Equal(t, []any{"hello"}, res.records[1]["args"])
	assert.Equal(t, "float", res.records[2]["selector"])
	assert.Equal(t, []any{42.0}, res.records[2]["args"])
	assert.Equal(t, "got foo 2", res.records[3]["message"])
}

// TEST604: Test host counts and arguments reach the script
func Test604_host_arguments(t *testing.T) {
	path := writeScript(t, "args.js", `pd.post(pd.inlets, pd.outlets, pd.args.join('|'), typeof pd.args[0]);`)
	res := invoke(t, "", "--inlets", "2", "--outlets", "3", path, "--", "440", "sine")
	assert.Equal(t, 0, res.code, res.stderr)
	require.Len(t, res.records, 2)
	assert.Equal(t, "2 3 440|sine number", res.records[1]["message"])
}

// TEST605: Test an invalid flag value is reported as a startup error after ready
func Test605_invalid_configuration(t *testing.T) {
	res := invoke(t, "", "--codec", "xml", "x.js")
	assert.Equal(t, 1, res.code)
	require.Len(t, res.records, 2)
	assert.Equal(t, "ready", res.records[0]["type"])
	assert.Contains(t, res.records[1]["message"], "Invalid configuration")
}

// TEST606: Test the CBOR codec carries the same contract
func Test606_cbor_codec(t *testing.T) {
	path := writeScript(t, "c.js", `pd.on('bang', () => pd.outlet(1, 7));`)
	payload, err := cbor.Marshal(map[string]any{"type": "message", "selector": "bang", "args": []any{}})
	require.NoError(t, err)
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	t.Setenv("PDBRIDGE_CONFIG", "")
	var stdout, stderr bytes.Buffer
	code := execute([]string{"--codec", "cbor", path}, bytes.NewReader(frame), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var records []map[string]any
	data := stdout.Bytes()
	for len(data) >= 4 {
		n := int(binary.BigEndian.Uint32(data[:4]))
		var rec map[string]any
		require.NoError(t, cbor.Unmarshal(data[4:4+n], &rec))
		records = append(records, rec)
		data = data[4+n:]
	}
	require.Len(t, records, 2)
	assert.Equal(t, "ready", records[0]["type"])
	assert.Equal(t, "float", records[1]["selector"])
	assert.EqualValues(t, 1, records[1]["outlet"])
}

// TEST607: Test the config file is honoured and diagnostics stay off stdout
func Test607_config_file(t *testing.T) {
	cfgPath := writeScript(t, "pdbridge.toml", "[logging]\nlevel = \"debug\"\nformat = \"json\"\n\n[host]\noutlets = 5\n")
	path := writeScript(t, "o.js", `pd.post(pd.outlets);`)

	res := invoke(t, "", "--config", cfgPath, path)
	assert.Equal(t, 0, res.code, res.stderr)
	require.Len(t, res.records, 2)
	assert.Equal(t, "5", res.records[1]["message"])
	assert.Contains(t, res.stderr, "Script loaded")
}

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer
	code := execute([]string{"version"}, strings.NewReader(""), &stdout, &bytes.Buffer{})
	assert.Equal(t, 0, code)
	assert.Equal(t, "pdbridge 0.1.0 (script API 0.1.0)\n", stdout.String())
}

func TestSchemaCommand(t *testing.T) {
	var stdout bytes.Buffer
	code := execute([]string{"schema"}, strings.NewReader(""), &stdout, &bytes.Buffer{})
	assert.Equal(t, 0, code)
	var schema map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &schema))
	assert.Contains(t, schema, "properties")
}

// TEST608: Test words after the script path are host arguments even when they look like flags
func Test608_negative_host_arguments(t *testing.T) {
	path := writeScript(t, "neg.js", `pd.post(pd.args.join('|'), typeof pd.args[0], pd.outlets);`)

	res := invoke(t, "", "--outlets", "2", path, "-5", "foo", "--inlets")
	assert.Equal(t, 0, res.code, res.stderr)
	require.Len(t, res.records, 2)
	assert.Equal(t, "-5|foo|--inlets number 2", res.records[1]["message"])

	res = invoke(t, "", path, "--", "-5", "foo")
	assert.Equal(t, 0, res.code, res.stderr)
	require.Len(t, res.records, 2)
	assert.Equal(t, "-5|foo number 1", res.records[1]["message"])
}

// TEST609: Test a TypeScript script runs through the command
func Test609_typescript_script(t *testing.T) {
	path := writeScript(t, "hello.ts", `
		import * as pd from 'pd-api';
		const double = (n: number): number => n * 2;
		pd.on('float', (inlet: number, n: number) => pd.outlet(0, double(n)));
	`)
	res := invoke(t, `{"type":"message","inlet":0,"selector":"float","args":[4]}`+"\n", path)
	assert.Equal(t, 0, res.code, res.stderr)
	require.Len(t, res.records, 2)
	assert.Equal(t, []any{8.0}, res.records[1]["args"])
}
