// Package fixture reads frames of rows from YAML documents.
//
// A fixture lists frames in load-independent order; values tagged !tmp are
// temporary identifiers:
//
//	frames:
//	  - table: region
//	    rows:
//	      - {id: !tmp r1, name: north}
//	      - {id: !tmp r2, name: south, parent: !tmp r1}
//	  - table: address
//	    rows:
//	      - {region: !tmp r2, street: 17}
package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/koustreak/frameload/internal/errs"
	"github.com/koustreak/frameload/internal/filestore"
	"github.com/koustreak/frameload/internal/load"
	"github.com/koustreak/frameload/internal/resolve"
	"go.yaml.in/yaml/v3"
)

// TempTag marks a scalar as a temporary identifier.
const TempTag = "!tmp"

// Extensions are the object key suffixes read below a prefix location.
var Extensions = []string{".yaml", ".yml"}

// MaxObjectSize bounds a fixture fetched from object storage.
const MaxObjectSize = 64 << 20

type document struct {
	Frames []frame `yaml:"frames"`
}

type frame struct {
	Table string `yaml:"table"`
	Rows  []row  `yaml:"rows"`
}

type row load.Row

// UnmarshalYAML decodes a mapping of column to value, turning !tmp
// scalars into resolve.TempID.
func (r *row) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: row must be a mapping", n.Line)
	}

	out := make(row, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode || k.Value == "" {
			return fmt.Errorf("line %d: column name must be a non-empty scalar", k.Line)
		}
		if _, dup := out[k.Value]; dup {
			return fmt.Errorf("line %d: duplicate column %q", k.Line, k.Value)
		}
		val, err := decodeValue(v)
		if err != nil {
			return err
		}
		out[k.Value] = val
	}
	*r = out
	return nil
}

func decodeValue(n *yaml.Node) (any, error) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Tag == TempTag {
		if n.Kind != yaml.ScalarNode || n.Value == "" {
			return nil, fmt.Errorf("line %d: %s needs a non-empty scalar", n.Line, TempTag)
		}
		return resolve.TempID(n.Value), nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Decode reads one fixture document.
func Decode(r io.Reader) ([]load.Frame, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errs.New(errs.ErrKindInvalidInput, "empty fixture")
		}
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid fixture", err)
	}

	frames := make([]load.Frame, 0, len(doc.Frames))
	for i, f := range doc.Frames {
		if f.Table == "" {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "frame %d: missing table", i)
		}
		rows := make([]load.Row, len(f.Rows))
		for j, r := range f.Rows {
			rows[j] = load.Row(r)
		}
		frames = append(frames, load.Frame{Table: f.Table, Rows: rows})
	}
	return frames, nil
}

// LoadFile reads a fixture from the local filesystem; "-" reads stdin.
func LoadFile(name string) ([]load.Frame, error) {
	if name == "-" {
		return Decode(os.Stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "fixture "+name, err)
		}
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "fixture "+name, err)
	}
	defer f.Close()
	return Decode(f)
}

// LoadObject reads a fixture from object storage. A prefix location reads
// every .yaml/.yml object below it in key order and concatenates frames.
func LoadObject(ctx context.Context, store filestore.Store, loc filestore.Location) ([]load.Frame, error) {
	if !loc.IsPrefix() {
		return loadObject(ctx, store, loc.Bucket, loc.Key)
	}

	objs, err := store.ListObjects(ctx, loc.Bucket, filestore.ListOptions{
		Prefix:    loc.Key,
		Recursive: true,
		Suffixes:  Extensions,
	})
	if err != nil {
		return nil, err
	}

	var frames []load.Frame
	found := 0
	for _, o := range objs {
		if o.IsDir {
			continue
		}
		found++
		fs, err := loadObject(ctx, store, loc.Bucket, o.Key)
		if err != nil {
			return nil, err
		}
		frames = append(frames, fs...)
	}
	if found == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "no fixtures below %s", loc)
	}
	return frames, nil
}

// Load reads a fixture from a file path or an s3:// location. store may be
// nil when no object storage is configured.
func Load(ctx context.Context, store filestore.Store, source string) ([]load.Frame, error) {
	if !filestore.IsLocation(source) {
		return LoadFile(source)
	}
	if store == nil {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "%s: object storage is not configured", source)
	}
	loc, err := filestore.ParseLocation(source)
	if err != nil {
		return nil, err
	}
	return LoadObject(ctx, store, loc)
}

func loadObject(ctx context.Context, store filestore.Store, bucket, key string) ([]load.Frame, error) {
	info, err := store.StatObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	if info.Size > MaxObjectSize {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "fixture %s is %d bytes, limit is %d", key, info.Size, MaxObjectSize)
	}

	obj, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	frames, err := Decode(io.LimitReader(obj, MaxObjectSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return frames, nil
}
