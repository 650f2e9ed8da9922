package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/exchange-agent/internal/core/domain"
	"github.com/custodia-labs/exchange-agent/internal/core/ports/driven"
)

// Ensure Writer implements the interface.
var _ driven.ConfigWriter = (*Writer)(nil)

// Writer rewrites single values in YAML and properties files. Files are
// replaced atomically: a reader sees either the old or the new content.
type Writer struct{}

// NewWriter creates a writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Writable checks that path is a regular file that can be opened for writing
// and that its directory accepts the temporary file used for the swap.
func (w *Writer) Writable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	f.Close()

	probe, err := os.CreateTemp(filepath.Dir(path), ".writable-*")
	if err != nil {
		return fmt.Errorf("directory of %s is not writable: %w", path, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// Rewrite replaces the value of key in the file, preserving all other content.
func (w *Writer) Rewrite(path string, kind domain.FileKind, key, value string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var updated []byte
	switch kind {
	case domain.FileKindYAML:
		updated, err = rewriteYAML(data, key, value)
	case domain.FileKindProperties:
		updated, err = rewriteProperty(data, key, value)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedFileKind, kind)
	}
	if err != nil {
		return fmt.Errorf("rewrite %s: %w", path, err)
	}

	return writeAtomic(path, updated, info.Mode().Perm())
}

// rewriteYAML sets key through the node tree so comments and the layout of
// unrelated entries survive. Every document of a multi-document stream is
// written back; the key must be defined in exactly one of them.
func rewriteYAML(data []byte, key, value string) ([]byte, error) {
	docs, err := decodeYAMLDocuments(data)
	if err != nil {
		return nil, err
	}

	path := strings.Split(key, ".")
	var node *yaml.Node
	for i, doc := range docs {
		found := findYAMLKey(doc.Content[0], path)
		if found == nil {
			continue
		}
		if node != nil {
			return nil, fmt.Errorf("key %s is defined in more than one document (again in document %d)", key, i+1)
		}
		node = found
	}
	if node == nil {
		return nil, fmt.Errorf("key %s not found", key)
	}
	if node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("key %s is not a scalar", key)
	}
	node.Value = value
	node.Tag = "!!str"
	if node.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		node.Style = 0
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeYAMLDocuments returns the non-empty documents of a YAML stream in order.
func decodeYAMLDocuments(data []byte) ([]*yaml.Node, error) {
	var docs []*yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		doc := new(yaml.Node)
		err := dec.Decode(doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
			docs = append(docs, doc)
		}
	}
}

// findYAMLKey walks a mapping by path. A segment may also match a dotted key
// written flat in the file, e.g. "api.client-secret: x" at the top level.
func findYAMLKey(node *yaml.Node, path []string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for n := len(path); n >= 1; n-- {
		name := strings.Join(path[:n], ".")
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value != name {
				continue
			}
			if n == len(path) {
				return node.Content[i+1]
			}
			if found := findYAMLKey(node.Content[i+1], path[n:]); found != nil {
				return found
			}
		}
	}
	return nil
}

// writeAtomic writes data to a temporary file next to path and renames it over path.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
