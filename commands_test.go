package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/bodul/gearscan/internal/schematic"
)

// runCLI executes gearscan with args and returns its standard output.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	a.logger = zap.NewNop()

	cmd := a.rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPartsCmd(t *testing.T) {
	out, err := runCLI(t, "", "parts", writeInput(t, exampleSchematic+"\n"))
	require.NoError(t, err)
	assert.Equal(t, "4361\n", out)
}

func TestGearsCmd(t *testing.T) {
	out, err := runCLI(t, "", "gears", writeInput(t, exampleSchematic+"\n"))
	require.NoError(t, err)
	assert.Equal(t, "467835\n", out)
}

func TestGearsCmdStdin(t *testing.T) {
	out, err := runCLI(t, exampleSchematic, "gears", "-")
	require.NoError(t, err)
	assert.Equal(t, "467835\n", out)
}

func TestMalformedInputFails(t *testing.T) {
	out, err := runCLI(t, "", "parts", writeInput(t, "123\n.*\n"))
	require.ErrorIs(t, err, schematic.ErrMalformedInput)
	assert.Empty(t, out, "no partial sum on malformed input")
}

func TestGearsCmdOverflow(t *testing.T) {
	path := writeInput(t, strings.Repeat("999999999*999999999\n", 10))
	out, err := runCLI(t, "", "gears", path)
	require.ErrorIs(t, err, schematic.ErrOverflow)
	assert.Empty(t, out)

	out, err = runCLI(t, "", "parts", path)
	require.NoError(t, err)
	assert.Equal(t, "19999999980\n", out)
}

func TestMissingFileFails(t *testing.T) {
	_, err := runCLI(t, "", "parts", filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
}

func TestAnalyzeCmdFormats(t *testing.T) {
	path := writeInput(t, exampleSchematic)

	out, err := runCLI(t, "", "analyze", path)
	require.NoError(t, err)
	assert.Contains(t, out, "size: 10x10")
	assert.Contains(t, out, "part number sum: 4361")
	assert.Contains(t, out, "gear ratio sum: 467835")

	out, err = runCLI(t, "", "analyze", "--format", "json", path)
	require.NoError(t, err)
	var rep schematic.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 4361, rep.PartNumber)
	assert.Len(t, rep.Parts, 8)

	out, err = runCLI(t, "", "analyze", "-f", "yaml", path)
	require.NoError(t, err)
	var fromYAML schematic.Report
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, rep, fromYAML)

	_, err = runCLI(t, "", "analyze", "-f", "xml", path)
	require.Error(t, err)
}

func TestShowCmd(t *testing.T) {
	out, err := runCLI(t, "", "show", writeInput(t, exampleSchematic))
	require.NoError(t, err)
	assert.Contains(t, out, "467")
	assert.Contains(t, out, "parts: 8 (sum 4361)")
	assert.Contains(t, out, "gears: 2 (sum 467835)")
}

func TestCalibrateCmd(t *testing.T) {
	path := writeInput(t, "1abc2\npqr3stu8vwx\na1b2c3d4e5f\ntreb7uchet\n")
	out, err := runCLI(t, "", "calibrate", path)
	require.NoError(t, err)
	assert.Equal(t, "142\n", out)

	path = writeInput(t, "two1nine\neightwothree\nabcone2threexyz\nxtwone3four\n4nineeightseven2\nzoneight234\n7pqrstsixteen\n")
	out, err = runCLI(t, "", "calibrate", "--words", path)
	require.NoError(t, err)
	assert.Equal(t, "281\n", out)
}

func TestArgsRequired(t *testing.T) {
	_, err := runCLI(t, "", "parts")
	require.Error(t, err)
}
