package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"

	"recnode.dev/recnode/storage/casregistry"

	_ "recnode.dev/recnode/storage/grpccas"
	_ "recnode.dev/recnode/storage/localfs"
)

func cmdStore(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: recnode store <put|get|has> --backend <name> [backend flags] <arg>")
		return 2
	}
	sub := args[0]
	switch sub {
	case "put", "get", "has":
	default:
		fmt.Fprintf(errOut, "unknown store subcommand: %s\n", sub)
		return 2
	}

	fs := flag.NewFlagSet("store "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	backend := fs.String("backend", "localfs", "block store backend name")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(errOut, "usage: recnode store %s --backend <name> [backend flags] <arg>\n", sub)
		return 2
	}

	cas, closeFn, err := casregistry.Open(*backend, casregistry.UsageCLI)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	switch sub {
	case "put":
		b, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "read: %v\n", err)
			return 1
		}
		id, err := cas.Put(b)
		if err != nil {
			fmt.Fprintf(errOut, "put: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, id.String())
		return 0
	case "get":
		id, err := cid.Decode(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "invalid cid: %v\n", err)
			return 2
		}
		b, err := cas.Get(id)
		if err != nil {
			fmt.Fprintf(errOut, "get: %v\n", err)
			return 1
		}
		_, _ = out.Write(b)
		return 0
	default: // has
		id, err := cid.Decode(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "invalid cid: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintln(out, cas.Has(id))
		return 0
	}
}
