package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func runShrink(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := &shrinkCommand{stdin: strings.NewReader(stdin), stdout: &stdout, stderr: &stderr}
	_, err := newApp(cmd).Parse(args)
	return stdout.String(), stderr.String(), err
}

func TestShrinkStdin(t *testing.T) {
	out, _, err := runShrink(t, `{ "foo" : 10000, "bar": [0.0001, null] }`)
	require.NoError(t, err)
	require.Equal(t, "{\"foo\":1e4,\"bar\":[1e-4,null]}\n", out)
}

func TestShrinkFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": 1000000, "b": "x"}`), 0o600))

	out, _, err := runShrink(t, "", path)
	require.NoError(t, err)
	require.Equal(t, "{\"a\":1e6,\"b\":\"x\"}\n", out)
}

func TestShrinkOptions(t *testing.T) {
	out, _, err := runShrink(t, `{"a": null, "b": 1.23456}`, "--remove-null", "--precision=2")
	require.NoError(t, err)
	require.Equal(t, "{\"b\":1.23}\n", out)
}

func TestShrinkVerify(t *testing.T) {
	out, _, err := runShrink(t, `{"a": 1000}`, "--verify")
	require.NoError(t, err)
	require.Equal(t, "{\"a\":1e3}\n", out)
}

func TestShrinkStats(t *testing.T) {
	_, stderr, err := runShrink(t, `[1000000, 2000000]`, "--stats")
	require.NoError(t, err)
	require.Contains(t, stderr, "Sizes:")
	require.Contains(t, stderr, "input: 18 B, output: 9 B")
}

func TestShrinkInvalid(t *testing.T) {
	_, _, err := runShrink(t, `{"a": }`)
	require.Error(t, err)

	_, _, err = runShrink(t, "", filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorContains(t, err, "failed to read file")
}
