// Command mavlctl drives a mavl store from the shell: open a directory as a
// named tree and put, get, delete, apply a batch, print the root hash, or
// generate and verify proofs against it.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/merkleavl/mavl/hash"
	"github.com/merkleavl/mavl/mavl"
	"github.com/merkleavl/mavl/metrics"
	"github.com/merkleavl/mavl/store"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	app := cli.NewApp()
	app.Name = "mavlctl"
	app.Usage = "inspect and mutate a mavl authenticated key/value store"
	app.Version = fmt.Sprintf("%s-%s", version, gitCommit)
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "datadir", Value: "./mavl-data", Usage: "store directory"},
		cli.StringFlag{Name: "tree", Value: "default", Usage: "named tree within the store"},
		cli.BoolFlag{Name: "metrics", Usage: "record metrics in Prometheus collectors while running (no HTTP endpoint is served)"},
	}
	app.Before = func(c *cli.Context) error {
		log.Root().SetHandler(log.LvlFilterHandler(log.LvlInfo, log.StreamHandler(os.Stderr, log.TerminalFormat(false))))
		if c.GlobalBool("metrics") {
			metrics.InitializePrometheusMetrics()
		}
		return nil
	}
	app.Commands = []cli.Command{
		cmdGet, cmdPut, cmdDelete, cmdApply, cmdRoot, cmdProveKeys, cmdProveRange, cmdVerify, cmdIter,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openTree(c *cli.Context) (*store.Tree, func(), error) {
	db, err := store.Open(c.GlobalString("datadir"), store.DefaultOptions())
	if err != nil {
		return nil, nil, err
	}
	tr, err := db.Tree(c.GlobalString("tree"))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return tr, func() { _ = db.Close() }, nil
}

var cmdGet = cli.Command{
	Name:      "get",
	Usage:     "print the value stored for a key",
	ArgsUsage: "<key>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.NewExitError("expected exactly one key argument", 1)
		}
		tr, closeFn, err := openTree(c)
		if err != nil {
			return err
		}
		defer closeFn()
		v, err := tr.Get(context.Background(), []byte(c.Args().Get(0)))
		if err != nil {
			return err
		}
		fmt.Println(string(v))
		return nil
	},
}

var cmdPut = cli.Command{
	Name:      "put",
	Usage:     "insert or overwrite a key",
	ArgsUsage: "<key> <value>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.NewExitError("expected <key> <value>", 1)
		}
		tr, closeFn, err := openTree(c)
		if err != nil {
			return err
		}
		defer closeFn()
		if err := tr.Put(context.Background(), []byte(c.Args().Get(0)), []byte(c.Args().Get(1))); err != nil {
			return err
		}
		return printRoot(tr)
	},
}

var cmdDelete = cli.Command{
	Name:      "delete",
	Usage:     "remove a key",
	ArgsUsage: "<key>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.NewExitError("expected exactly one key argument", 1)
		}
		tr, closeFn, err := openTree(c)
		if err != nil {
			return err
		}
		defer closeFn()
		if err := tr.Delete(context.Background(), []byte(c.Args().Get(0))); err != nil {
			return err
		}
		return printRoot(tr)
	},
}

// batchOp mirrors mavl.Op for JSON decoding of a batch file: a list of
// {"key": "...", "value": "...", "delete": bool} objects.
type batchOp struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Delete bool   `json:"delete"`
}

var cmdApply = cli.Command{
	Name:      "apply",
	Usage:     "apply a batch of puts/deletes from a JSON file",
	ArgsUsage: "<batch.json>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.NewExitError("expected a batch file path", 1)
		}
		raw, err := os.ReadFile(c.Args().Get(0))
		if err != nil {
			return err
		}
		var batch []batchOp
		if err := json.Unmarshal(raw, &batch); err != nil {
			return err
		}
		ops := make([]mavl.Op, len(batch))
		for i, b := range batch {
			ops[i] = mavl.Op{Key: []byte(b.Key), Value: []byte(b.Value), Delete: b.Delete}
		}
		tr, closeFn, err := openTree(c)
		if err != nil {
			return err
		}
		defer closeFn()
		if err := tr.ApplyChecked(context.Background(), ops); err != nil {
			return err
		}
		return printRoot(tr)
	},
}

var cmdRoot = cli.Command{
	Name:  "root",
	Usage: "print the tree's current root hash",
	Action: func(c *cli.Context) error {
		tr, closeFn, err := openTree(c)
		if err != nil {
			return err
		}
		defer closeFn()
		return printRoot(tr)
	},
}

func printRoot(tr *store.Tree) error {
	root, present, err := tr.RootHash()
	if err != nil {
		return err
	}
	if !present {
		fmt.Println("(empty)")
		return nil
	}
	fmt.Println(root.String())
	return nil
}

var cmdProveKeys = cli.Command{
	Name:      "prove-keys",
	Usage:     "print a hex-encoded membership proof for a set of keys",
	ArgsUsage: "<key> [key...]",
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.NewExitError("expected at least one key", 1)
		}
		keys := make([][]byte, c.NArg())
		for i, a := range c.Args() {
			keys[i] = []byte(a)
		}
		tr, closeFn, err := openTree(c)
		if err != nil {
			return err
		}
		defer closeFn()
		proof, err := tr.ProveKeys(context.Background(), keys)
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(proof.Encode()))
		return nil
	},
}

var cmdProveRange = cli.Command{
	Name:      "prove-range",
	Usage:     "print a hex-encoded range proof covering [from, to]",
	ArgsUsage: "<from> <to>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.NewExitError("expected <from> <to>", 1)
		}
		tr, closeFn, err := openTree(c)
		if err != nil {
			return err
		}
		defer closeFn()
		proof, err := tr.ProveRange(context.Background(), []byte(c.Args().Get(0)), []byte(c.Args().Get(1)))
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(proof.Encode()))
		return nil
	},
}

var cmdVerify = cli.Command{
	Name:      "verify",
	Usage:     "verify a hex-encoded proof against a root hash for a set of keys",
	ArgsUsage: "<root-hex> <proof-hex> <key> [key...]",
	Action: func(c *cli.Context) error {
		if c.NArg() < 3 {
			return cli.NewExitError("expected <root-hex> <proof-hex> <key> [key...]", 1)
		}
		rootBytes, err := hex.DecodeString(c.Args().Get(0))
		if err != nil {
			return err
		}
		root, ok := hash.FromBytes(rootBytes)
		if !ok {
			return cli.NewExitError("root hash must be exactly 32 bytes", 1)
		}
		proofBytes, err := hex.DecodeString(c.Args().Get(1))
		if err != nil {
			return err
		}
		proof, err := mavl.DecodeProof(proofBytes)
		if err != nil {
			return err
		}
		keys := make([][]byte, c.NArg()-2)
		for i, a := range c.Args()[2:] {
			keys[i] = []byte(a)
		}
		got, err := mavl.Verify(root, proof, mavl.KeySelector{Keys: keys})
		if err != nil {
			return err
		}
		for k, v := range got {
			fmt.Printf("%s=%s\n", k, v)
		}
		return nil
	},
}

var cmdIter = cli.Command{
	Name:      "iter",
	Usage:     "list key/value pairs in ascending order starting at a key",
	ArgsUsage: "[from]",
	Action: func(c *cli.Context) error {
		var from []byte
		if c.NArg() > 0 {
			from = []byte(c.Args().Get(0))
		}
		tr, closeFn, err := openTree(c)
		if err != nil {
			return err
		}
		defer closeFn()
		it := tr.IterFrom(context.Background(), from)
		defer it.Release()
		for it.Next() {
			n := it.Node()
			fmt.Printf("%s=%s\n", n.Key, n.Value)
		}
		return it.Err()
	},
}
