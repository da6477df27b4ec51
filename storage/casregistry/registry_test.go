package casregistry

import (
	"flag"
	"io"
	"testing"

	"recnode.dev/recnode/storage"
)

func fakeBackend(name string, usage Usage) Backend {
	return Backend{
		Name:          name,
		Description:   "test backend",
		Usage:         usage,
		RegisterFlags: func(fs *flag.FlagSet) { fs.String(name+"-opt", "", "test option") },
		Open: func() (storage.CAS, func() error, error) {
			return storage.NewMemCAS(), nil, nil
		},
	}
}

func TestRegister_RejectsIncompleteBackends(t *testing.T) {
	cases := []Backend{
		{},
		{Name: "x1"},
		{Name: "x2", RegisterFlags: func(*flag.FlagSet) {}},
		{Name: "x3", RegisterFlags: func(*flag.FlagSet) {}, Open: func() (storage.CAS, func() error, error) { return nil, nil, nil }},
	}
	for i, b := range cases {
		if err := Register(b); err == nil {
			t.Fatalf("case %d: expected registration error", i)
		}
	}
}

func TestRegister_RejectsDuplicates(t *testing.T) {
	b := fakeBackend("dup-test", UsageCLI)
	if err := Register(b); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := Register(b); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestListAndOpen_HonorUsage(t *testing.T) {
	if err := Register(fakeBackend("cli-only-test", UsageCLI)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	found := false
	for _, b := range List(UsageCLI) {
		if b.Name == "cli-only-test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("CLI listing missing the backend")
	}
	for _, b := range List(UsageDaemon) {
		if b.Name == "cli-only-test" {
			t.Fatalf("daemon listing contains a CLI-only backend")
		}
	}

	cas, closeFn, err := Open("cli-only-test", UsageCLI)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if cas == nil {
		t.Fatalf("Open returned nil CAS")
	}
	if closeFn != nil {
		defer closeFn()
	}

	if _, _, err := Open("cli-only-test", UsageDaemon); err == nil {
		t.Fatalf("expected error opening a CLI-only backend for daemon usage")
	}
	if _, _, err := Open("no-such-backend", UsageCLI); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestList_SortedByName(t *testing.T) {
	for _, name := range []string{"zz-sort-test", "aa-sort-test"} {
		if err := Register(fakeBackend(name, UsageCLI|UsageDaemon)); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	all := List(UsageCLI)
	for i := 1; i < len(all); i++ {
		if all[i-1].Name > all[i].Name {
			t.Fatalf("listing not sorted: %s before %s", all[i-1].Name, all[i].Name)
		}
	}
}

func TestRegisterFlags_AddsBackendFlags(t *testing.T) {
	if err := Register(fakeBackend("flags-test", UsageCLI)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	RegisterFlags(fs, UsageCLI)
	if fs.Lookup("flags-test-opt") == nil {
		t.Fatalf("backend flag not registered")
	}
}
