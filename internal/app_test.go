package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/valter-silva-au/agent-pulse/internal/cli"
)

func TestResolveBasePath_PulseHomeSet(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("PULSE_HOME", tmpDir)

	got := ResolveBasePath()
	if got != tmpDir {
		t.Errorf("ResolveBasePath() = %q, want %q", got, tmpDir)
	}
}

func TestResolveBasePath_FindsPulseConfig(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "sub", "nested")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}

	configPath := filepath.Join(tmpDir, ".pulseconfig")
	if err := os.WriteFile(configPath, []byte("engine:\n  max_errors: 100\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(origDir) }()
	if err := os.Chdir(subDir); err != nil {
		t.Fatal(err)
	}

	os.Unsetenv("PULSE_HOME")

	got := ResolveBasePath()
	// Resolve symlinks so the comparison survives /tmp being a symlink.
	wantResolved, _ := filepath.EvalSymlinks(tmpDir)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != wantResolved {
		t.Errorf("ResolveBasePath() = %q, want %q", got, tmpDir)
	}
}

func TestNewApp_Defaults(t *testing.T) {
	app, err := NewApp(t.TempDir())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer app.Close()

	if app.Collector == nil || app.Tracker == nil || app.Exporter == nil {
		t.Fatal("engine components not initialized")
	}
	if app.Dispatcher != nil {
		t.Error("dispatcher created with notifications disabled")
	}
	if app.Bridge != nil {
		t.Error("prometheus bridge created with serve disabled")
	}
	if app.Config.Engine.MaxErrors != 5000 {
		t.Errorf("MaxErrors = %d, want default 5000", app.Config.Engine.MaxErrors)
	}
}

func TestNewApp_NotificationsEnabled(t *testing.T) {
	dir := t.TempDir()
	content := `notifications:
  enabled: true
  webhook_url: https://hooks.example.com/pulse
`
	if err := os.WriteFile(filepath.Join(dir, ".pulseconfig"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := NewApp(dir)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer app.Close()

	if app.Dispatcher == nil {
		t.Error("dispatcher not created for webhook notifications")
	}
}

func TestNewApp_ServeEnabled(t *testing.T) {
	dir := t.TempDir()
	content := `serve:
  enabled: true
`
	if err := os.WriteFile(filepath.Join(dir, ".pulseconfig"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := NewApp(dir)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer app.Close()

	if app.Bridge == nil {
		t.Error("prometheus bridge not created with serve enabled")
	}
}

func TestNewApp_WiresCLI(t *testing.T) {
	dir := t.TempDir()

	app, err := NewApp(dir)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer app.Close()

	if cli.Collector != app.Collector || cli.Tracker != app.Tracker {
		t.Error("CLI package vars not wired to app services")
	}
	if cli.BasePath != dir {
		t.Errorf("cli.BasePath = %q, want %q", cli.BasePath, dir)
	}
	want := filepath.Join(dir, "pulse_snapshot.json")
	if cli.SnapshotPath != want {
		t.Errorf("cli.SnapshotPath = %q, want %q", cli.SnapshotPath, want)
	}
}

func TestApp_CloseIsSafeTwice(t *testing.T) {
	app, err := NewApp(t.TempDir())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	if err := app.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	// Second close hits the already-closed event log file handle.
	_ = app.Close()
}
