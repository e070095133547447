package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	aperturedb "github.com/gsaluja9/aperturedb-go"
	"github.com/rs/zerolog/log"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func runQuery(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "client config file (defaults plus APERTUREDB_* env when empty)")
	file := fs.String("file", "", "query JSON file, - for stdin")
	out := fs.String("out", "", "directory for returned blobs")
	timeout := fs.Duration("timeout", time.Minute, "overall deadline")
	var blobPaths stringList
	fs.Var(&blobPaths, "blob", "input blob file, repeatable, sent in order")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("query: -file is required\n%w", errUsage)
	}

	data, err := readInput(*file, stdin)
	if err != nil {
		return err
	}
	blobs, err := readBlobs(blobPaths)
	if err != nil {
		return err
	}
	return execRaw(*cfgPath, *timeout, data, blobs, *out, stdout)
}

func runStatus(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "client config file")
	timeout := fs.Duration("timeout", 10*time.Second, "overall deadline")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return execRaw(*cfgPath, *timeout, []byte(`[{"GetStatus":{}}]`), nil, "", stdout)
}

func execRaw(cfgPath string, timeout time.Duration, data []byte, blobs [][]byte, outDir string, stdout io.Writer) error {
	cfg, err := loadClientConfig(cfgPath)
	if err != nil {
		return err
	}
	client, err := aperturedb.New(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	respJSON, respBlobs, err := client.RawQuery(ctx, json.RawMessage(data), blobs)
	if err != nil {
		return err
	}
	if err := printJSON(stdout, respJSON); err != nil {
		return err
	}
	if outDir == "" {
		if len(respBlobs) > 0 {
			log.Info().Int("blobs", len(respBlobs)).Msg("adbctl: blobs returned, pass -out to save them")
		}
		return nil
	}
	paths, err := writeBlobs(outDir, respBlobs)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func readBlobs(paths []string) ([][]byte, error) {
	blobs := make([][]byte, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read blob: %w", err)
		}
		blobs = append(blobs, b)
	}
	return blobs, nil
}

// writeBlobs stores blobs as blob-000.bin, blob-001.bin, ... under dir.
func writeBlobs(dir string, blobs [][]byte) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(blobs))
	for i, b := range blobs {
		p := filepath.Join(dir, fmt.Sprintf("blob-%03d.bin", i))
		if err := os.WriteFile(p, b, 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func printJSON(w io.Writer, raw string) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		// Not JSON; show it as the server sent it.
		_, werr := fmt.Fprintln(w, raw)
		return werr
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
