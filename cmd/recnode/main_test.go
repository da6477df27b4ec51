package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSeedHex = "a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeMessageFile(t *testing.T, dir, name, nonce, dateCreated, payload string) (path, cidLine string) {
	t.Helper()
	dataPath := filepath.Join(dir, name+".json")
	if err := os.WriteFile(dataPath, []byte(payload), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	outPath := filepath.Join(dir, name+".msg")
	code, stdout, stderr := runCLI(t,
		"write",
		"--target", "did:example:alice",
		"--recipient", "did:example:bob",
		"--record-id", "rec-1",
		"--nonce", nonce,
		"--date-created", dateCreated,
		"--data", dataPath,
		"--data-format", "application/json",
		"--seed-hex", testSeedHex,
		"--out", outPath,
	)
	if code != 0 {
		t.Fatalf("write: exit %d, stderr: %s", code, stderr)
	}
	return outPath, strings.TrimSpace(stdout)
}

func TestCLI_WriteVerifyNewest(t *testing.T) {
	dir := t.TempDir()

	m1, cid1 := writeMessageFile(t, dir, "m1", "nonce-1", "100", `{"v":1}`)
	m2, cid2 := writeMessageFile(t, dir, "m2", "nonce-2", "200", `{"v":2}`)
	if cid1 == cid2 {
		t.Fatalf("distinct writes share a CID")
	}

	code, _, stderr := runCLI(t, "verify", m1)
	if code != 0 {
		t.Fatalf("verify: exit %d, stderr: %s", code, stderr)
	}

	code, stdout, stderr := runCLI(t, "cid", m1)
	if code != 0 {
		t.Fatalf("cid: exit %d, stderr: %s", code, stderr)
	}
	if strings.TrimSpace(stdout) != cid1 {
		t.Fatalf("cid: got %s want %s", strings.TrimSpace(stdout), cid1)
	}

	// The later write resolves as newest regardless of argument order.
	for _, order := range [][]string{{m1, m2}, {m2, m1}} {
		code, stdout, stderr = runCLI(t, append([]string{"newest"}, order...)...)
		if code != 0 {
			t.Fatalf("newest: exit %d, stderr: %s", code, stderr)
		}
		if !strings.HasPrefix(stdout, cid2+" ") {
			t.Fatalf("newest: got %q, want prefix %q", stdout, cid2)
		}
	}
}

func TestCLI_VerifyRejectsTamperedFile(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeMessageFile(t, dir, "m1", "nonce-1", "100", `{"v":1}`)

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	b[len(b)-1] ^= 0xff
	tampered := filepath.Join(dir, "tampered.msg")
	if err := os.WriteFile(tampered, b, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if code, _, _ := runCLI(t, "verify", tampered); code == 0 {
		t.Fatalf("verify accepted a tampered message")
	}
}

func TestCLI_DataCID(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "payload.bin")
	if err := os.WriteFile(dataPath, []byte("payload bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	code, stdout, stderr := runCLI(t, "data-cid", dataPath)
	if code != 0 {
		t.Fatalf("data-cid: exit %d, stderr: %s", code, stderr)
	}
	if !strings.HasPrefix(strings.TrimSpace(stdout), "baf") {
		t.Fatalf("data-cid: unexpected output %q", stdout)
	}
}

func TestCLI_KeyLifecycle(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	code, stdout, stderr := runCLI(t, "key", "init", "--name", "alice", "--seed-hex", testSeedHex)
	if code != 0 {
		t.Fatalf("key init: exit %d, stderr: %s", code, stderr)
	}
	rootKey := strings.TrimSpace(stdout)
	if !strings.HasPrefix(rootKey, "ed25519:") {
		t.Fatalf("key init: unexpected writer key %q", rootKey)
	}

	code, stdout, stderr = runCLI(t, "key", "derive", "--from", "alice", "--role", "author")
	if code != 0 {
		t.Fatalf("key derive: exit %d, stderr: %s", code, stderr)
	}
	roleKey := strings.TrimSpace(stdout)
	if roleKey == rootKey {
		t.Fatalf("role key equals root key")
	}

	code, stdout, stderr = runCLI(t, "key", "export", "--name", "alice", "--role", "author")
	if code != 0 {
		t.Fatalf("key export: exit %d, stderr: %s", code, stderr)
	}
	if strings.TrimSpace(stdout) != roleKey {
		t.Fatalf("key export: got %q want %q", strings.TrimSpace(stdout), roleKey)
	}

	code, stdout, stderr = runCLI(t, "key", "list")
	if code != 0 {
		t.Fatalf("key list: exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "alice") {
		t.Fatalf("key list: missing entry, got %q", stdout)
	}

	// A stored key can sign a write.
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "payload.json")
	if err := os.WriteFile(dataPath, []byte(`{"v":1}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	outPath := filepath.Join(dir, "m.msg")
	code, _, stderr = runCLI(t,
		"write",
		"--target", "did:example:alice",
		"--recipient", "did:example:bob",
		"--record-id", "rec-1",
		"--date-created", "100",
		"--data", dataPath,
		"--data-format", "application/json",
		"--signer", "alice", "--signer-role", "author",
		"--out", outPath,
	)
	if code != 0 {
		t.Fatalf("write with stored key: exit %d, stderr: %s", code, stderr)
	}
	if code, _, stderr := runCLI(t, "verify", outPath); code != 0 {
		t.Fatalf("verify: exit %d, stderr: %s", code, stderr)
	}
}

func TestCLI_StoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "block.bin")
	if err := os.WriteFile(dataPath, []byte("block bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	storeDir := filepath.Join(dir, "store")

	code, stdout, stderr := runCLI(t, "store", "put", "--backend", "localfs", "--localfs-dir", storeDir, dataPath)
	if code != 0 {
		t.Fatalf("store put: exit %d, stderr: %s", code, stderr)
	}
	id := strings.TrimSpace(stdout)

	code, stdout, stderr = runCLI(t, "store", "get", "--backend", "localfs", "--localfs-dir", storeDir, id)
	if code != 0 {
		t.Fatalf("store get: exit %d, stderr: %s", code, stderr)
	}
	if stdout != "block bytes" {
		t.Fatalf("store get: got %q", stdout)
	}

	code, stdout, stderr = runCLI(t, "store", "has", "--backend", "localfs", "--localfs-dir", storeDir, id)
	if code != 0 {
		t.Fatalf("store has: exit %d, stderr: %s", code, stderr)
	}
	if strings.TrimSpace(stdout) != "true" {
		t.Fatalf("store has: got %q", stdout)
	}
}

func TestCLI_NewestJSON(t *testing.T) {
	dir := t.TempDir()
	m1, _ := writeMessageFile(t, dir, "m1", "nonce-1", "100", `{"v":1}`)
	m2, cid2 := writeMessageFile(t, dir, "m2", "nonce-2", "200", `{"v":2}`)

	code, stdout, stderr := runCLI(t, "newest", "--json", m1, m2)
	if code != 0 {
		t.Fatalf("newest --json: exit %d, stderr: %s", code, stderr)
	}
	var resp struct {
		Found bool   `json:"found"`
		CID   string `json:"cid"`
	}
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if !resp.Found || resp.CID != cid2 {
		t.Fatalf("newest --json: got %+v, want cid %s", resp, cid2)
	}
}

func TestCLI_UnknownCommand(t *testing.T) {
	if code, _, _ := runCLI(t, "frobnicate"); code != 2 {
		t.Fatalf("unknown command: got exit %d, want 2", code)
	}
	if code, _, _ := runCLI(t); code != 2 {
		t.Fatalf("no command: got exit %d, want 2", code)
	}
	if code, _, _ := runCLI(t, "help"); code != 0 {
		t.Fatalf("help: got nonzero exit")
	}
}
