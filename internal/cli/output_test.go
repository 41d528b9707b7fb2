package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recsync/internal/config"
	"github.com/roach88/recsync/internal/record"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(PruneResult{Removed: []string{"node.n1.yml"}})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"removed": []any{"node.n1.yml"}}, resp.Data)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"uuid": "n1", "path": "/content/node.n1.yml"}
	err := formatter.Error(ErrCodeNotFound, "record not found", details)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "record not found", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeDependedUpon, "prune refused", map[string]string{"uuid": "n1"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E007]: prune refused")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error(ErrCodeDependedUpon, "prune refused", map[string]string{"uuid": "n1"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Scanning %s", "/content")

			assert.Empty(t, out.String(), "verbose output must not corrupt stdout")
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "Scanning /content")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{
			name:     "config",
			err:      &config.Error{Path: "recsync.yaml", Message: "unknown field"},
			wantCode: ErrCodeConfig,
			wantExit: ExitCommandError,
		},
		{
			name:     "not_found",
			err:      &record.Error{Code: record.ErrCodeNotFound, Message: "no record file", Identity: "n1"},
			wantCode: ErrCodeNotFound,
			wantExit: ExitFailure,
		},
		{
			name:     "depended_upon_wrapped",
			err:      fmt.Errorf("prune: %w", &record.Error{Code: record.ErrCodeDependedUpon, Message: "n1 is needed"}),
			wantCode: ErrCodeDependedUpon,
			wantExit: ExitFailure,
		},
		{
			name:     "validation",
			err:      &record.Error{Code: record.ErrCodeValidation, Message: "missing uuid", Path: "/content/x.yml"},
			wantCode: ErrCodeValidation,
			wantExit: ExitFailure,
		},
		{
			name:     "generic",
			err:      errors.New("boom"),
			wantCode: ErrCodeGeneric,
			wantExit: ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.Fail("operation failed", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, "operation failed")
		})
	}
}

func TestErrorDetails(t *testing.T) {
	err := fmt.Errorf("import: %w", &record.Error{
		Code:     record.ErrCodeInvalidInput,
		Message:  "bad yaml",
		Identity: "n1",
		Path:     "/content/node.n1.yml",
	})
	assert.Equal(t, map[string]string{"uuid": "n1", "path": "/content/node.n1.yml"}, errorDetails(err))
	assert.Nil(t, errorDetails(errors.New("plain")))
	assert.Nil(t, errorDetails(&record.Error{Code: record.ErrCodeIO, Message: "disk"}))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad config", nil)))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "drift"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
