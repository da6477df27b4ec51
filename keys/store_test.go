package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *KeyStore {
	t.Helper()
	ks, err := CreateKeyStore(t.TempDir())
	if err != nil {
		t.Fatalf("CreateKeyStore: %v", err)
	}
	return ks
}

func TestKeyStore_InitDeriveExport(t *testing.T) {
	ks := testStore(t)
	seed := testSeed(0xA1)

	rootKey, rootPath, err := ks.InitializeRootKey("alice", seed, false)
	if err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	if rootKey != WriterKeyFromSeed(seed) {
		t.Fatalf("root writer key mismatch")
	}
	if _, err := os.Stat(rootPath); err != nil {
		t.Fatalf("root key file missing: %v", err)
	}

	roleKey, rolePath, err := ks.DeriveKeyFromRole("alice", "author", false)
	if err != nil {
		t.Fatalf("DeriveKeyFromRole: %v", err)
	}
	wantSeed, err := DeriveRoleSeed(seed, "author")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	if roleKey != WriterKeyFromSeed(wantSeed) {
		t.Fatalf("role writer key mismatch")
	}
	if _, err := os.Stat(rolePath); err != nil {
		t.Fatalf("role key file missing: %v", err)
	}

	exported, err := ks.ExportKey("alice", "")
	if err != nil {
		t.Fatalf("ExportKey root: %v", err)
	}
	if exported != rootKey {
		t.Fatalf("exported root key mismatch")
	}
	exported, err = ks.ExportKey("alice", "author")
	if err != nil {
		t.Fatalf("ExportKey role: %v", err)
	}
	if exported != roleKey {
		t.Fatalf("exported role key mismatch")
	}
}

func TestKeyStore_InitRefusesOverwrite(t *testing.T) {
	ks := testStore(t)
	if _, _, err := ks.InitializeRootKey("alice", testSeed(0xA1), false); err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	if _, _, err := ks.InitializeRootKey("alice", testSeed(0xB2), false); err == nil {
		t.Fatalf("expected error when overwriting without consent")
	}
	key, _, err := ks.InitializeRootKey("alice", testSeed(0xB2), true)
	if err != nil {
		t.Fatalf("InitializeRootKey overwrite: %v", err)
	}
	if key != WriterKeyFromSeed(testSeed(0xB2)) {
		t.Fatalf("overwrite did not take effect")
	}
}

func TestKeyStore_RejectsBadNames(t *testing.T) {
	ks := testStore(t)
	if _, _, err := ks.InitializeRootKey("", testSeed(0xA1), false); err == nil {
		t.Fatalf("expected error for empty identifier")
	}
	if _, _, err := ks.InitializeRootKey("../escape", testSeed(0xA1), false); err == nil {
		t.Fatalf("expected error for path characters in identifier")
	}
	if _, _, err := ks.InitializeRootKey("alice", testSeed(0xA1), false); err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	if _, _, err := ks.DeriveKeyFromRole("alice", "bad role", false); err == nil {
		t.Fatalf("expected error for invalid role")
	}
}

func TestKeyStore_LoadSeedPrecedence(t *testing.T) {
	ks := testStore(t)
	seed := testSeed(0xA1)
	if _, _, err := ks.InitializeRootKey("alice", seed, false); err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}

	inline := testSeed(0xC3)
	got, err := ks.LoadSeed(hex.EncodeToString(inline), "alice", "", "")
	if err != nil {
		t.Fatalf("LoadSeed inline: %v", err)
	}
	if string(got) != string(inline) {
		t.Fatalf("inline seed must take precedence over the store entry")
	}

	keyFile := filepath.Join(t.TempDir(), "loose.key")
	loose := testSeed(0xD4)
	if err := os.WriteFile(keyFile, []byte(hex.EncodeToString(loose)+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err = ks.LoadSeed("", "alice", "", keyFile)
	if err != nil {
		t.Fatalf("LoadSeed file: %v", err)
	}
	if string(got) != string(loose) {
		t.Fatalf("key file must take precedence over the store entry")
	}

	got, err = ks.LoadSeed("", "alice", "", "")
	if err != nil {
		t.Fatalf("LoadSeed store: %v", err)
	}
	if string(got) != string(seed) {
		t.Fatalf("store entry seed mismatch")
	}

	if _, err := ks.LoadSeed("", "", "", ""); err == nil {
		t.Fatalf("expected error when no signer is provided")
	}
}

func TestKeyStore_ListKeys(t *testing.T) {
	ks := testStore(t)

	entries, err := ks.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("fresh store: got %d entries", len(entries))
	}

	if _, _, err := ks.InitializeRootKey("bob", testSeed(0xB2), false); err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	if _, _, err := ks.InitializeRootKey("alice", testSeed(0xA1), false); err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	if _, _, err := ks.DeriveKeyFromRole("alice", "reviewer", false); err != nil {
		t.Fatalf("DeriveKeyFromRole: %v", err)
	}
	if _, _, err := ks.DeriveKeyFromRole("alice", "author", false); err != nil {
		t.Fatalf("DeriveKeyFromRole: %v", err)
	}

	entries, err = ks.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListKeys: got %d entries, want 2", len(entries))
	}
	if entries[0].Identifier != "alice" || entries[1].Identifier != "bob" {
		t.Fatalf("entries not sorted: %+v", entries)
	}
	if len(entries[0].Roles) != 2 || entries[0].Roles[0] != "author" || entries[0].Roles[1] != "reviewer" {
		t.Fatalf("alice roles: %v", entries[0].Roles)
	}
}

func TestParseSeedHex(t *testing.T) {
	seed := testSeed(0xA1)
	enc := hex.EncodeToString(seed)

	for _, in := range []string{enc, "0x" + enc, "  " + enc + "\n"} {
		got, err := ParseSeedHex(in)
		if err != nil {
			t.Fatalf("ParseSeedHex(%q): %v", in, err)
		}
		if string(got) != string(seed) {
			t.Fatalf("ParseSeedHex(%q): seed mismatch", in)
		}
	}

	if _, err := ParseSeedHex("zz"); err == nil {
		t.Fatalf("expected error for non-hex input")
	}
	if _, err := ParseSeedHex(hex.EncodeToString(make([]byte, ed25519.SeedSize-1))); err == nil {
		t.Fatalf("expected error for short seed")
	}
}
