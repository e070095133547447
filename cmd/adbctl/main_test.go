package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gsaluja9/aperturedb-go/internal/testutil/testlog"
	"github.com/gsaluja9/aperturedb-go/protocol/envelope"
)

// serve answers Authenticate with a session and every other request with
// reply, echoing request blobs back.
func serve(t *testing.T, reply func(names []string) string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer conn.Close()
				for {
					req, err := envelope.ReadMessage(conn)
					if err != nil {
						return
					}
					var cmds []map[string]json.RawMessage
					_ = json.Unmarshal([]byte(req.JSON), &cmds)
					var names []string
					for _, c := range cmds {
						for name := range c {
							names = append(names, name)
						}
					}
					var resp envelope.Message
					if len(names) == 1 && names[0] == "Authenticate" {
						resp = envelope.New(`[{"Authenticate":{"status":0,"session_token":"s","refresh_token":"r","session_token_expires_in":3600,"refresh_token_expires_in":7200}}]`, nil, "")
					} else {
						resp = envelope.New(reply(names), req.Blobs, "")
					}
					if err := envelope.WriteMessage(conn, resp); err != nil {
						return
					}
				}
			}()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		wg.Wait()
	})
	return ln.Addr().String()
}

func writeConfig(t *testing.T, addr string) string {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split %s: %v", addr, err)
	}
	path := filepath.Join(t.TempDir(), "client.toml")
	body := fmt.Sprintf("host = %q\nport = %s\nusername = \"admin\"\npassword = \"admin\"\nuse_ssl = false\nretry_interval = \"10ms\"\n", host, port)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestQueryCommand(t *testing.T) {
	testlog.Start(t)
	addr := serve(t, func(names []string) string {
		return fmt.Sprintf(`[{%q:{"status":0,"returned":1}}]`, names[0])
	})
	cfgPath := writeConfig(t, addr)
	dir := t.TempDir()
	queryPath := filepath.Join(dir, "q.json")
	if err := os.WriteFile(queryPath, []byte(`[{"FindImage":{"blobs":true}}]`), 0o600); err != nil {
		t.Fatalf("write query: %v", err)
	}
	blobPath := filepath.Join(dir, "in.bin")
	if err := os.WriteFile(blobPath, []byte("pixels"), 0o600); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	outDir := filepath.Join(dir, "out")

	var stdout bytes.Buffer
	err := run([]string{"query", "-config", cfgPath, "-file", queryPath, "-blob", blobPath, "-out", outDir}, nil, &stdout)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(stdout.String(), `"FindImage"`) || !strings.Contains(stdout.String(), `"returned": 1`) {
		t.Fatalf("unexpected output %s", stdout.String())
	}
	got, err := os.ReadFile(filepath.Join(outDir, "blob-000.bin"))
	if err != nil || string(got) != "pixels" {
		t.Fatalf("returned blob not written: %q, %v", got, err)
	}
}

func TestQueryFromStdin(t *testing.T) {
	testlog.Start(t)
	addr := serve(t, func(names []string) string {
		return `[{"FindEntity":{"status":0,"returned":0}}]`
	})
	cfgPath := writeConfig(t, addr)

	var stdout bytes.Buffer
	stdin := strings.NewReader(`[{"FindEntity":{"with_class":"Person"}}]`)
	if err := run([]string{"query", "-config", cfgPath, "-file", "-"}, stdin, &stdout); err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(stdout.String(), `"FindEntity"`) {
		t.Fatalf("unexpected output %s", stdout.String())
	}
}

func TestStatusCommand(t *testing.T) {
	testlog.Start(t)
	var seen []string
	var mu sync.Mutex
	addr := serve(t, func(names []string) string {
		mu.Lock()
		seen = append(seen, names...)
		mu.Unlock()
		return `[{"GetStatus":{"status":0,"info":"OK","version":"0.18.0"}}]`
	})
	cfgPath := writeConfig(t, addr)

	var stdout bytes.Buffer
	if err := run([]string{"status", "-config", cfgPath}, nil, &stdout); err != nil {
		t.Fatalf("status: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "GetStatus" {
		t.Fatalf("unexpected commands %v", seen)
	}
	if !strings.Contains(stdout.String(), `"version": "0.18.0"`) {
		t.Fatalf("unexpected output %s", stdout.String())
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "aperturedb.toml")
	var stdout bytes.Buffer
	if err := run([]string{"config", "init", "-output", path}, nil, &stdout); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := run([]string{"config", "init", "-output", path}, nil, &stdout); err == nil {
		t.Fatalf("expected init to refuse overwriting without -force")
	}
	if err := run([]string{"config", "init", "-output", path, "-force"}, nil, &stdout); err != nil {
		t.Fatalf("init -force: %v", err)
	}
	if err := run([]string{"config", "validate", "-input", path}, nil, &stdout); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(stdout.String(), "validated "+path) {
		t.Fatalf("unexpected output %s", stdout.String())
	}
}

func TestUsageErrors(t *testing.T) {
	testlog.Start(t)
	cases := [][]string{
		nil,
		{"bogus"},
		{"config"},
		{"config", "bogus"},
		{"query"},
	}
	for _, args := range cases {
		if err := run(args, nil, &bytes.Buffer{}); !errors.Is(err, errUsage) {
			t.Fatalf("run(%v) = %v, want usage error", args, err)
		}
	}
}

func TestPrintJSONFallsBackToRaw(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := printJSON(&buf, "not json"); err != nil {
		t.Fatalf("printJSON: %v", err)
	}
	if buf.String() != "not json\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
