// Command segment-inspect lists binary segment files and decodes the values
// of a single external component, using the same configuration as the store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"atfxcore/internal/blob"
	"atfxcore/internal/codec"
	"atfxcore/internal/config"
	"atfxcore/internal/logging"
	"atfxcore/pkg/value"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type request struct {
	configPath string
	list       bool
	prefix     string
	comp       codec.Component
	typeName   string
	as         string
	sep        string
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("segment-inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var req request
	fs.StringVar(&req.configPath, "config", "atfxcore.yaml", "configuration file; ATFXCORE_* variables are used when missing")
	fs.BoolVar(&req.list, "list", false, "list segments instead of decoding a component")
	fs.StringVar(&req.prefix, "prefix", "", "segment name prefix for -list")
	fs.StringVar(&req.comp.File, "segment", "", "segment name relative to the segment root")
	fs.StringVar(&req.typeName, "type", "ieeefloat8", "component value type, e.g. dt_long or ieeefloat8")
	fs.Int64Var(&req.comp.StartOffset, "offset", 0, "start offset in bytes")
	fs.IntVar(&req.comp.Length, "length", 0, "number of values")
	fs.IntVar(&req.comp.BlockSize, "block", 0, "block size in bytes; defaults to the type width")
	fs.IntVar(&req.comp.ValuesPerBlock, "vpb", 1, "values per block")
	fs.IntVar(&req.comp.ValueOffset, "value-offset", 0, "byte offset of the value inside a block")
	fs.IntVar(&req.comp.BitCount, "bit-count", 0, "bit count for bit-packed types")
	fs.IntVar(&req.comp.BitOffset, "bit-offset", 0, "bit offset for bit-packed types")
	fs.StringVar(&req.as, "as", "", "data type to decode into, e.g. DS_DOUBLE; defaults to the natural type")
	fs.StringVar(&req.sep, "sep", ",", "separator between printed values")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := run(context.Background(), req, stdout); err != nil {
		if _, writeErr := fmt.Fprintf(stderr, "segment-inspect: %v\n", err); writeErr != nil {
			return 1
		}
		return 1
	}
	return 0
}

func run(ctx context.Context, req request, stdout io.Writer) error {
	cfg, err := config.LoadWithFallback(req.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return err
	}
	store, err := blob.Open(ctx, cfg.BlobConfig())
	if err != nil {
		return fmt.Errorf("open segments: %w", err)
	}
	if req.list {
		return list(ctx, store, req.prefix, stdout)
	}
	if req.comp.File == "" {
		return errors.New("-segment is required")
	}
	if req.comp.Length <= 0 {
		return errors.New("-length must be positive")
	}
	spec, err := codec.ParseTypeSpec(req.typeName)
	if err != nil {
		return err
	}
	req.comp.TypeSpec = spec
	if req.comp.BlockSize == 0 {
		req.comp.BlockSize = spec.Width() * req.comp.ValuesPerBlock
	}
	dt := spec.NaturalType()
	if req.as != "" {
		if dt, err = value.ParseDataType(req.as); err != nil {
			return err
		}
	}
	sep := ','
	if r := []rune(req.sep); len(r) == 1 {
		sep = r[0]
	}

	c := codec.New(store, cfg.CodecOptions(logger, nil)...)
	v, err := c.ReadValues(ctx, []codec.Component{req.comp}, dt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s[%d]: %s\n", v.Type(), v.Len(), value.Format(v, sep))
	return err
}

func list(ctx context.Context, store blob.Store, prefix string, stdout io.Writer) error {
	infos, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, info := range infos {
		if _, err := fmt.Fprintf(stdout, "%s\t%d\n", info.Name, info.Size); err != nil {
			return err
		}
	}
	return nil
}
