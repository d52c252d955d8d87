// Copyright 2026 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/quarrylabs/quarry/ai/mock"
	"github.com/quarrylabs/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(data []byte) *Request {
	return &Request{
		Document: &core.Document{
			Fingerprint: core.FingerprintBytes(data),
			Source:      "mem://doc.txt",
			Type:        core.DocTypeUnknown,
			Size:        int64(len(data)),
		},
		Data: data,
	}
}

func TestExtractPrimaryDecoderWins(t *testing.T) {
	provider := mock.NewProvider()
	stage := newExtractStage(provider)
	state := core.NewPipelineState()

	err := stage.Run(context.Background(), testRequest([]byte("hello world\r\n")), state)
	require.NoError(t, err)

	assert.Equal(t, "hello world", state.Text)
	assert.Empty(t, state.FallbacksUsed)
	assert.Empty(t, state.Degraded)
	assert.Equal(t, 1, provider.Primary.CallCount())
	assert.Equal(t, 0, provider.OCR.CallCount())
}

func TestExtractFallsBackToOCR(t *testing.T) {
	provider := mock.NewProvider()
	provider.Primary.DecodeTextFunc = func(context.Context, string, []byte) (string, error) {
		return "", errors.New("corrupt container")
	}
	provider.OCR.DecodeTextFunc = func(context.Context, string, []byte) (string, error) {
		return "scanned text", nil
	}

	stage := newExtractStage(provider)
	state := core.NewPipelineState()

	err := stage.Run(context.Background(), testRequest([]byte{0xff, 0xfe}), state)
	require.NoError(t, err)

	assert.Equal(t, "scanned text", state.Text)
	assert.Equal(t, []string{"ocr"}, state.FallbacksUsed)
	require.NotEmpty(t, state.Errors)
	assert.Equal(t, "native", state.Errors[0].Method)
}

func TestExtractUnavailableDecodersAreDegraded(t *testing.T) {
	provider := &mock.Provider{} // no capabilities at all
	stage := newExtractStage(provider)
	state := core.NewPipelineState()

	err := stage.Run(context.Background(), testRequest([]byte("Sheet metal order 4711\nquantity 12")), state)
	require.NoError(t, err)

	assert.Contains(t, state.Degraded, "primary-decoder")
	assert.Contains(t, state.Degraded, "ocr-decoder")
	assert.Contains(t, state.Text, "Sheet metal order 4711")
	// Skipped capabilities are not fallbacks; nothing was attempted.
	assert.Empty(t, state.FallbacksUsed)
}

func TestExtractEmptyDocumentIsUnrecoverable(t *testing.T) {
	provider := mock.NewProvider() // default decoders echo the raw bytes
	stage := newExtractStage(provider)
	state := core.NewPipelineState()

	err := stage.Run(context.Background(), testRequest([]byte("  \r\n\t  ")), state)
	require.Error(t, err)

	assert.ErrorIs(t, err, core.ErrEmptyDocument)
	assert.False(t, core.IsRecoverable(err))
}

func TestHeuristicDecoderSalvagesPrintableRuns(t *testing.T) {
	data := append([]byte{0x00, 0x01}, []byte("PART NO 12-400")...)
	data = append(data, 0x03, 0x7f)
	data = append(data, []byte("Rev B title block")...)

	text, err := heuristicDecoder{}.DecodeText(context.Background(), "", data)
	require.NoError(t, err)
	assert.Equal(t, "PART NO 12-400\nRev B title block", text)
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf to lf", "a\r\nb\r\nc", "a\nb\nc"},
		{"bare cr to lf", "a\rb", "a\nb"},
		{"strips nul and replacement char", "a\x00b�c", "abc"},
		{"trims outer whitespace", "  \n text \n ", "text"},
		{"empty stays empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}
