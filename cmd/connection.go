// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/emvstat/internal/config"
)

// Connection provides a common interface for reading bytes from a serial
// scanner or a WebSocket bridge
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection exposes WebSocket messages as a byte stream. Each
// message is one scan; a newline is appended when the bridge omits it.
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if len(data) == 0 {
			continue
		}
		if data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}

		w.buf = data
		w.bufOffset = copy(p, w.buf)
		return w.bufOffset, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv(config.EnvPassword); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens either a serial or WebSocket connection based on
// the scanner settings
func OpenConnection() (Connection, string, error) {
	scanner := cfg.Scanner

	if scanner.URL != "" {
		password := ""
		if scanner.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(scanner.URL, scanner.Username, password, scanner.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		logger.Info().Str("url", scanner.URL).Msg("WebSocket bridge connected")
		return conn, fmt.Sprintf("WebSocket: %s", scanner.URL), nil
	}

	if scanner.Port != "" {
		conn, err := OpenSerialConnection(scanner.Port, scanner.Baud)
		if err != nil {
			return nil, "", err
		}
		logger.Info().Str("port", scanner.Port).Int("baud", scanner.Baud).Msg("serial scanner opened")
		return conn, fmt.Sprintf("Serial: %s @ %d baud", scanner.Port, scanner.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// hasConnection reports whether a scanner source is configured
func hasConnection() bool {
	return cfg.Scanner.URL != "" || cfg.Scanner.Port != ""
}

// maxScanLength bounds a single scanned line
const maxScanLength = 64 * 1024

// readScans splits r into scanned payloads, one per line, and sends them to
// out until r fails or ctx is done. The returned error is nil when r ends
// cleanly or the connection is closed.
func readScans(ctx context.Context, r io.Reader, out chan<- string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), maxScanLength)

	for scanner.Scan() {
		raw := normalizeScan(scanner.Text())
		if raw == "" {
			continue
		}
		select {
		case out <- raw:
		case <-ctx.Done():
			return nil
		}
	}

	err := scanner.Err()
	if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return nil
	}
	return err
}

// normalizeScan trims line noise and the AIM symbology identifier
// ("]Q1" for QR Code) that scanners can be configured to prepend
func normalizeScan(line string) string {
	line = strings.TrimSpace(line)
	if len(line) >= 3 && line[0] == ']' && line[1] == 'Q' && line[2] >= '0' && line[2] <= '9' {
		line = line[3:]
	}
	return line
}
