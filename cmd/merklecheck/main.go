// Command merklecheck is a small demonstration binary: it replays a JSON
// operation sequence against one of the three tree kinds and one of the
// pluggable backing stores, printing the resulting root after each
// operation. It exists to exercise the library end to end, the way
// trillian's own ctclient demonstrates its log client against a live
// tree, not as a production tool.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/trillian-merkle/fuelmerkle/avl"
	"github.com/trillian-merkle/fuelmerkle/binary"
	"github.com/trillian-merkle/fuelmerkle/common"
	"github.com/trillian-merkle/fuelmerkle/sparse"
	"github.com/trillian-merkle/fuelmerkle/storage"
)

// op is one line of the input JSON, e.g. {"op":"update","key":"01..","value":"hello"}.
type op struct {
	Op    string `json:"op"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
}

func main() {
	tree := flag.String("tree", "sparse", "tree kind: sparse, binary, or avl")
	backend := flag.String("backend", "memory", "backing store: memory or btree")
	input := flag.String("input", "-", "path to a JSON-lines operation file, or - for stdin")
	flag.Parse()

	if err := run(*tree, *backend, *input); err != nil {
		glog.Errorf("merklecheck: %v", err)
		os.Exit(1)
	}
}

func newStore(backend string) (storage.Store, error) {
	switch backend {
	case "memory":
		return storage.NewInstrumentedStore(storage.NewMemoryStore()), nil
	case "btree":
		return storage.NewInstrumentedStore(storage.NewOrderedStore()), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func run(treeKind, backend, inputPath string) error {
	store, err := newStore(backend)
	if err != nil {
		return err
	}

	r := os.Stdin
	if inputPath != "-" {
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("open %s: %w", inputPath, err)
		}
		defer f.Close()
		r = f
	}

	ctx := context.Background()
	dec := json.NewDecoder(r)

	switch treeKind {
	case "sparse":
		return runSparse(ctx, store, dec)
	case "binary":
		return runBinary(ctx, store, dec)
	case "avl":
		return runAVL(ctx, store, dec)
	default:
		return fmt.Errorf("unknown tree kind %q", treeKind)
	}
}

func runSparse(ctx context.Context, store storage.Store, dec *json.Decoder) error {
	t := sparse.New(store, common.Digest{})
	for {
		var o op
		if err := dec.Decode(&o); err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		key := common.DigestFromHex(o.Key)
		root, err := t.Update(ctx, key, []byte(o.Value))
		if err != nil {
			return fmt.Errorf("%s %s: %w", o.Op, o.Key, err)
		}
		fmt.Printf("%s %s -> root=%s\n", o.Op, o.Key, root)
	}
}

func runBinary(ctx context.Context, store storage.Store, dec *json.Decoder) error {
	t := binary.New(store, common.Digest{})
	for {
		var o op
		if err := dec.Decode(&o); err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		root, err := t.Push(ctx, []byte(o.Value))
		if err != nil {
			return fmt.Errorf("push %s: %w", o.Value, err)
		}
		fmt.Printf("push %s -> root=%s\n", o.Value, root)
	}
}

func runAVL(ctx context.Context, store storage.Store, dec *json.Decoder) error {
	t := avl.New(store, common.Digest{})
	for {
		var o op
		if err := dec.Decode(&o); err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		key := common.DigestFromHex(o.Key)
		var root common.Digest
		var err error
		if o.Op == "delete" {
			root, err = t.Delete(ctx, key)
		} else {
			root, err = t.Insert(ctx, key, []byte(o.Value))
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", o.Op, o.Key, err)
		}
		fmt.Printf("%s %s -> root=%s\n", o.Op, o.Key, root)
	}
}
