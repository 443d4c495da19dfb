// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/emvstat/pkg/emvqr"
)

// collectScans runs readScans over r and gathers every line
func collectScans(t *testing.T, r io.Reader) ([]string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		errc <- readScans(ctx, r, out)
		close(out)
	}()

	var scans []string
	for raw := range out {
		scans = append(scans, raw)
	}
	return scans, <-errc
}

func TestNormalizeScan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"000201", "000201"},
		{"  000201\r", "000201"},
		{"]Q1000201", "000201"},
		{"]Q3000201", "000201"},
		{"]C0000201", "]C0000201"},
		{"]Q", "]Q"},
		{"", ""},
		{" \t ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeScan(tt.in), "input %q", tt.in)
	}
}

func TestReadScans_Lines(t *testing.T) {
	t.Parallel()

	input := emvqr.SampleAnnexB + "\r\n\n]Q1" + emvqr.SampleAnnexB + "\nlast-without-newline"
	scans, err := collectScans(t, strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, []string{emvqr.SampleAnnexB, emvqr.SampleAnnexB, "last-without-newline"}, scans)
}

func TestReadScans_TooLong(t *testing.T) {
	t.Parallel()

	input := strings.Repeat("0", maxScanLength+10) + "\n"
	_, err := collectScans(t, strings.NewReader(input))
	assert.Error(t, err)
}

func TestReadScans_ConnectionClosed(t *testing.T) {
	t.Parallel()

	r := io.MultiReader(strings.NewReader("000201\n"), errReader{ErrConnectionClosed})
	scans, err := collectScans(t, r)

	assert.NoError(t, err)
	assert.Equal(t, []string{"000201"}, scans)
}

type errReader struct {
	err error
}

func (e errReader) Read(p []byte) (int, error) {
	return 0, e.err
}

func TestWebSocketConnection_Scans(t *testing.T) {
	t.Parallel()

	encoded := emvqr.Encode(emvqr.FieldMap{emvqr.FieldAmount: "5"})
	authSeen := make(chan string, 1)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authSeen <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(emvqr.SampleAnnexB))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte("]Q1"+encoded+"\r\n"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte{})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		// Wait for the client to close
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, err := OpenWebSocketConnection(wsURL, "scanner", "s3cret", false)
	require.NoError(t, err)
	defer conn.Close()

	scans, err := collectScans(t, conn)
	require.NoError(t, err)
	assert.Equal(t, []string{emvqr.SampleAnnexB, encoded}, scans)

	expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("scanner:s3cret"))
	assert.Equal(t, expected, <-authSeen)

	// Further reads report the closed connection
	_, err = conn.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestOpenWebSocketConnection_Errors(t *testing.T) {
	t.Parallel()

	_, err := OpenWebSocketConnection("http://localhost/ws", "", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")

	_, err = OpenWebSocketConnection("ws://%zz", "", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestOpenConnection_NothingConfigured(t *testing.T) {
	t.Parallel()

	require.False(t, hasConnection())
	_, _, err := OpenConnection()
	assert.EqualError(t, err, "either --port or --url must be specified")
}
