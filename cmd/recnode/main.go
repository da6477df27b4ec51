package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"recnode.dev/recnode/auth"
	"recnode.dev/recnode/cidutil"
	"recnode.dev/recnode/keys"
	"recnode.dev/recnode/model"
	"recnode.dev/recnode/node"
	"recnode.dev/recnode/records"
	"recnode.dev/recnode/schema"
	"recnode.dev/recnode/storage"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "write":
		return cmdWrite(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "newest":
		return cmdNewest(args[1:], out, errOut)
	case "cid":
		return cmdCID(args[1:], out, errOut)
	case "data-cid":
		return cmdDataCID(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "store":
		return cmdStore(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "recnode: signed record writes with deterministic conflict resolution")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  recnode key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  recnode key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  recnode key list")
	fmt.Fprintln(w, "  recnode key export --name <name> [--role <role>]")
	fmt.Fprintln(w, "  recnode write --target <id> --recipient <id> --record-id <id> --data <file> --data-format <mime> --date-created <n> (--seed-hex <64hex> | --signer <name> [--signer-role <role>] | --key-file <path>) [--nonce <s>] [--protocol <s>] [--schema <s>] [--context-id <s>] [--parent-id <s>] [--published] [--json] --out <file>")
	fmt.Fprintln(w, "  recnode verify <message-file>")
	fmt.Fprintln(w, "  recnode newest [--json] <message-file> [<message-file> ...]")
	fmt.Fprintln(w, "  recnode cid <message-file>")
	fmt.Fprintln(w, "  recnode data-cid <file>")
	fmt.Fprintln(w, "  recnode store put --backend <name> [backend flags] <file>")
	fmt.Fprintln(w, "  recnode store get --backend <name> [backend flags] <cid>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - --seed-hex must be 32 bytes (64 hex chars) ed25519 seed")
	fmt.Fprintln(w, "  - keys are stored under ~/.recnode/keys/<name> (0600 private key files)")
	fmt.Fprintln(w, "  - write emits canonical CBOR message bytes; cid prints the claim CID")
	fmt.Fprintln(w, "  - newest verifies each candidate and prints the authoritative write's CID")
}

func loadSigner(seedHex, signerName, signerRole, keyFile string, errOut io.Writer) (*auth.Ed25519Signer, int) {
	if seedHex == "" && signerName == "" && keyFile == "" {
		fmt.Fprintln(errOut, "missing signer: use --seed-hex, --signer, or --key-file")
		return nil, 2
	}
	if seedHex != "" && (signerName != "" || keyFile != "") {
		fmt.Fprintln(errOut, "conflicting signer flags: --seed-hex cannot be combined with --signer or --key-file")
		return nil, 2
	}
	if signerName != "" && keyFile != "" {
		fmt.Fprintln(errOut, "conflicting signer flags: --signer cannot be combined with --key-file")
		return nil, 2
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return nil, 1
	}
	seed, err := ks.LoadSeed(seedHex, signerName, signerRole, keyFile)
	if err != nil {
		fmt.Fprintf(errOut, "invalid signer: %v\n", err)
		return nil, 2
	}
	signer, err := auth.NewEd25519Signer(ed25519.NewKeyFromSeed(seed), "sha256")
	if err != nil {
		fmt.Fprintf(errOut, "signer: %v\n", err)
		return nil, 1
	}
	return signer, 0
}

func cmdWrite(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var target, recipient, recordID, nonce string
	var protocol, schemaURI, contextID, parentID string
	var dataPath, dataFormat, outPath string
	var dateCreated, datePublished int64
	var published bool
	var seedHex, signerName, signerRole, keyFile string
	var jsonOut bool

	fs.StringVar(&target, "target", "", "Owning namespace/tenant identifier")
	fs.StringVar(&recipient, "recipient", "", "Record recipient identifier")
	fs.StringVar(&recordID, "record-id", "", "Stable logical record identifier")
	fs.StringVar(&nonce, "nonce", "", "Uniqueness token (random if omitted)")
	fs.StringVar(&protocol, "protocol", "", "Optional protocol classification")
	fs.StringVar(&schemaURI, "schema", "", "Optional schema classification")
	fs.StringVar(&contextID, "context-id", "", "Optional grouping context")
	fs.StringVar(&parentID, "parent-id", "", "Optional superseded write identifier")
	fs.StringVar(&dataPath, "data", "", "Payload file")
	fs.StringVar(&dataFormat, "data-format", "", "Payload MIME-like format tag")
	fs.Int64Var(&dateCreated, "date-created", 0, "Creation timestamp (integer)")
	fs.BoolVar(&published, "published", false, "Mark the record published")
	fs.Int64Var(&datePublished, "date-published", 0, "Publication timestamp (requires --published)")
	fs.StringVar(&outPath, "out", "", "Output file for canonical message bytes")
	fs.StringVar(&seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars")
	fs.StringVar(&signerName, "signer", "", "Use a stored key by name (from 'recnode key init')")
	fs.StringVar(&signerRole, "signer-role", "", "When using --signer, optionally use a derived role key")
	fs.StringVar(&keyFile, "key-file", "", "Path to a seed file (hex) created by 'recnode key init/derive'")
	fs.BoolVar(&jsonOut, "json", false, "Print the full write result as JSON instead of the bare CID")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if target == "" || recipient == "" || recordID == "" || dataPath == "" || dataFormat == "" {
		fmt.Fprintln(errOut, "missing required flags: --target, --recipient, --record-id, --data, --data-format")
		return 2
	}
	if outPath == "" {
		fmt.Fprintln(errOut, "missing --out")
		return 2
	}
	if nonce == "" {
		var buf [16]byte
		if _, err := rand.Read(buf[:]); err != nil {
			fmt.Fprintf(errOut, "nonce: %v\n", err)
			return 1
		}
		nonce = hex.EncodeToString(buf[:])
	}

	data, err := os.ReadFile(dataPath)
	if err != nil {
		fmt.Fprintf(errOut, "read data: %v\n", err)
		return 1
	}

	signer, code := loadSigner(seedHex, signerName, signerRole, keyFile, errOut)
	if code != 0 {
		return code
	}

	opts := records.WriteOptions{
		Target:      target,
		Recipient:   recipient,
		Protocol:    protocol,
		Schema:      schemaURI,
		ContextID:   contextID,
		ParentID:    parentID,
		RecordID:    recordID,
		Nonce:       nonce,
		DateCreated: dateCreated,
		DataFormat:  dataFormat,
		Data:        data,
		Signer:      signer,
		Validator:   schema.Standard{},
	}
	if published {
		opts.Published = &published
		if datePublished != 0 {
			opts.DatePublished = &datePublished
		}
	}

	msg, err := records.NewWrite(context.Background(), opts)
	if err != nil {
		fmt.Fprintf(errOut, "write: %v\n", err)
		return 1
	}
	b, err := msg.Encode()
	if err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		fmt.Fprintf(errOut, "write out: %v\n", err)
		return 1
	}
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(model.WriteResponse{Message: *msg, CID: msg.CID()}); err != nil {
			fmt.Fprintf(errOut, "encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintln(out, msg.CID())
	return 0
}

func readMessage(path string, errOut io.Writer) (*records.Message, int) {
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "read message: %v\n", err)
		return nil, 1
	}
	msg, err := records.DecodeMessage(b)
	if err != nil {
		fmt.Fprintf(errOut, "decode message: %v\n", err)
		return nil, 1
	}
	return msg, 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: recnode verify <message-file>")
		return 2
	}
	msg, code := readMessage(fs.Arg(0), errOut)
	if code != 0 {
		return code
	}
	if err := auth.Verify(context.Background(), msg, auth.SelfDescribing{}, nil); err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func cmdNewest(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("newest", flag.ContinueOnError)
	fs.SetOutput(errOut)
	jsonOut := fs.Bool("json", false, "Print the resolution as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(errOut, "usage: recnode newest <message-file> [<message-file> ...]")
		return 2
	}

	n, err := node.New(node.Options{
		CAS:       storage.NewMemCAS(),
		Identity:  auth.SelfDescribing{},
		Validator: schema.Standard{},
	})
	if err != nil {
		fmt.Fprintf(errOut, "node: %v\n", err)
		return 1
	}

	var target, recordID string
	for _, path := range fs.Args() {
		raw, rerr := os.ReadFile(path)
		if rerr != nil {
			fmt.Fprintf(errOut, "read message: %v\n", rerr)
			return 1
		}
		if _, ierr := n.IngestBytes(context.Background(), raw); ierr != nil {
			fmt.Fprintf(errOut, "reject %s: %v\n", path, ierr)
			return 1
		}
		msg, derr := records.DecodeMessage(raw)
		if derr != nil {
			fmt.Fprintf(errOut, "decode %s: %v\n", path, derr)
			return 1
		}
		if target == "" {
			target, recordID = msg.Descriptor.Target, msg.Descriptor.RecordID
		} else if target != msg.Descriptor.Target || recordID != msg.Descriptor.RecordID {
			fmt.Fprintf(errOut, "%s targets a different record\n", path)
			return 2
		}
	}

	newest, ok, err := n.Newest(target, recordID)
	if err != nil {
		fmt.Fprintf(errOut, "resolve: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(errOut, "no messages")
		return 1
	}
	if *jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(model.NewestResponse{Found: true, Message: newest, CID: newest.CID()}); err != nil {
			fmt.Fprintf(errOut, "encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(out, "%s dateCreated=%d\n", newest.CID(), newest.Descriptor.DateCreated)
	return 0
}

func cmdCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: recnode cid <message-file>")
		return 2
	}
	msg, code := readMessage(fs.Arg(0), errOut)
	if code != 0 {
		return code
	}
	_, _ = fmt.Fprintln(out, msg.CID())
	return 0
}

func cmdDataCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("data-cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: recnode data-cid <file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read data: %v\n", err)
		return 1
	}
	id := cidutil.CIDv1RawSHA256(b)
	if id == "" {
		fmt.Fprintln(errOut, "failed to compute CID")
		return 1
	}
	_, _ = fmt.Fprintln(out, id)
	return 0
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: recnode key <init|derive|list|export> ...")
		return 2
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}

	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("key init", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var name, seedHex string
		var force bool
		fs.StringVar(&name, "name", "", "Key name")
		fs.StringVar(&seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars (random if omitted)")
		fs.BoolVar(&force, "force", false, "Overwrite an existing key")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if name == "" {
			fmt.Fprintln(errOut, "missing --name")
			return 2
		}
		var seed []byte
		if seedHex != "" {
			seed, err = keys.ParseSeedHex(seedHex)
			if err != nil {
				fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", err)
				return 2
			}
		} else {
			seed = make([]byte, ed25519.SeedSize)
			if _, err := rand.Read(seed); err != nil {
				fmt.Fprintf(errOut, "seed: %v\n", err)
				return 1
			}
		}
		writerKey, path, err := ks.InitializeRootKey(name, seed, force)
		if err != nil {
			fmt.Fprintf(errOut, "key init: %v\n", err)
			return 1
		}
		fmt.Fprintf(errOut, "stored %s\n", path)
		_, _ = fmt.Fprintln(out, writerKey)
		return 0

	case "derive":
		fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var from, role string
		var force bool
		fs.StringVar(&from, "from", "", "Root key name")
		fs.StringVar(&role, "role", "", "Role name")
		fs.BoolVar(&force, "force", false, "Overwrite an existing role key")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if from == "" || role == "" {
			fmt.Fprintln(errOut, "missing --from or --role")
			return 2
		}
		writerKey, path, err := ks.DeriveKeyFromRole(from, role, force)
		if err != nil {
			fmt.Fprintf(errOut, "key derive: %v\n", err)
			return 1
		}
		fmt.Fprintf(errOut, "stored %s\n", path)
		_, _ = fmt.Fprintln(out, writerKey)
		return 0

	case "list":
		entries, err := ks.ListKeys()
		if err != nil {
			fmt.Fprintf(errOut, "key list: %v\n", err)
			return 1
		}
		for _, e := range entries {
			if len(e.Roles) == 0 {
				_, _ = fmt.Fprintln(out, e.Identifier)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%v\n", e.Identifier, e.Roles)
		}
		return 0

	case "export":
		fs := flag.NewFlagSet("key export", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var name, role string
		fs.StringVar(&name, "name", "", "Key name")
		fs.StringVar(&role, "role", "", "Optional role")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if name == "" {
			fmt.Fprintln(errOut, "missing --name")
			return 2
		}
		writerKey, err := ks.ExportKey(name, role)
		if err != nil {
			fmt.Fprintf(errOut, "key export: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, writerKey)
		return 0

	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}
