package cmdb

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeSource creates one CMDB fixture file under dir, creating parents.
func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newCascadeCMDB(t *testing.T, dir, env string) *CMDB {
	t.Helper()
	c, err := New(Options{
		Path:        Cascade{Dir: dir},
		Environment: StaticEnvironment(env),
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestGetFirstFoundWins(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "prod/web1.yml", "db: a\n")
	writeSource(t, dir, "prod/default.yml", "db: b\ncache: x\n")

	c := newCascadeCMDB(t, dir, "prod")

	got, ok, err := c.Get("", "web1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false for full tree")
	}
	want := map[string]any{"db": "a", "cache": "x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %v, want %v", got, want)
	}
}

func TestGetSingleItem(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "prod/default.yml", "ntp:\n  - ntp1\n  - ntp2\n")

	c := newCascadeCMDB(t, dir, "prod")

	got, ok, err := c.Get("ntp", "web1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !reflect.DeepEqual(got, []any{"ntp1", "ntp2"}) {
		t.Errorf("Get() = %v", got)
	}
}

func TestGetMissingItem(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "prod/web1.yml", "db: a\n")

	c := newCascadeCMDB(t, dir, "prod")

	v, ok, err := c.Get("nonexistent_key", "web1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || v != nil {
		t.Errorf("Get() = %v, %v; want nil, false", v, ok)
	}
}

func TestGetNoSourcesAtAll(t *testing.T) {
	c := newCascadeCMDB(t, t.TempDir(), "prod")

	got, ok, err := c.Get("", "web1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || !reflect.DeepEqual(got, map[string]any{}) {
		t.Errorf("Get() = %v, %v; want empty mapping", got, ok)
	}
}

func TestGetMalformedSourceIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "prod/web1.yml", "db: [unclosed\n")

	c := newCascadeCMDB(t, dir, "prod")

	_, _, err := c.Get("", "web1")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Get() error = %v, want *ParseError", err)
	}
	if perr.Path != filepath.Join(dir, "prod", "web1.yml") {
		t.Errorf("ParseError.Path = %q", perr.Path)
	}
}

func TestLoadCacheIdempotence(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "prod/web1.yml", "db: a\n")

	c := newCascadeCMDB(t, dir, "prod")

	first, _, err := c.Get("", "web1")
	if err != nil {
		t.Fatal(err)
	}

	// Removing the file proves the second lookup is served entirely from
	// the memo cache, positive and negative entries alike.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	second, _, err := c.Get("", "web1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached lookup = %v, want %v", second, first)
	}

	stats := c.Stats()
	if stats.CacheMisses != 4 {
		t.Errorf("CacheMisses = %d, want 4 (one per cascade tier)", stats.CacheMisses)
	}
	if stats.CacheHits != 4 {
		t.Errorf("CacheHits = %d, want 4", stats.CacheHits)
	}
}

func TestNegativeCacheSticks(t *testing.T) {
	dir := t.TempDir()
	c := newCascadeCMDB(t, dir, "prod")

	if _, _, err := c.Get("", "web1"); err != nil {
		t.Fatal(err)
	}

	// A file appearing after the first probe is invisible to this
	// instance; absence is memoized for its lifetime.
	writeSource(t, dir, "prod/web1.yml", "db: late\n")
	got, _, err := c.Get("", "web1")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, map[string]any{}) {
		t.Errorf("Get() after late file = %v, want empty mapping", got)
	}
}

func TestContentTemplating(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "prod/default.yml", "backup_dir: /backup/{{ hostname }}\nenv_name: '{{ environment }}'\n")

	c, err := New(Options{
		Path:        Cascade{Dir: dir},
		Environment: StaticEnvironment("prod"),
		Settings:    StaticSettings{"datacenter": "fra1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _, err := c.Get("backup_dir", "web1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/backup/web1" {
		t.Errorf("backup_dir = %v, want /backup/web1", got)
	}
	env, _, _ := c.Get("env_name", "web1")
	if env != "prod" {
		t.Errorf("env_name = %v, want prod", env)
	}
}

func TestSettingsSeedPathVariables(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "fra1/web1.yml", "rack: r12\n")

	c, err := New(Options{
		Path:     ExplicitPaths{filepath.Join(dir, "{datacenter}", "{server}.yml")},
		Settings: StaticSettings{"datacenter": "fra1"},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get("rack", "web1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v", got, ok, err)
	}
	if got != "r12" {
		t.Errorf("rack = %v, want r12", got)
	}
}

func TestReferenceExpansionAgainstAccumulator(t *testing.T) {
	// The second pattern references data merged from the first source.
	dir := t.TempDir()
	writeSource(t, dir, "web1.yml", "roles:\n  - web\n  - monitoring\n")
	writeSource(t, dir, "roles/web.yml", "listen_port: 80\n")
	writeSource(t, dir, "roles/monitoring.yml", "scrape_interval: 15s\n")

	c, err := New(Options{
		Path: ExplicitPaths{
			filepath.Join(dir, "{server}.yml"),
			filepath.Join(dir, "roles", "[roles].yml"),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _, err := c.Get("", "web1")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"roles":           []any{"web", "monitoring"},
		"listen_port":     80,
		"scrape_interval": "15s",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %v, want %v", got, want)
	}
}

func TestComputedPathStrategy(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "special.yml", "db: computed\n")

	c, err := New(Options{
		Path: ComputedPaths(func(_ *CMDB, item, server string) []string {
			if server == "web1" {
				return []string{filepath.Join(dir, "special.yml")}
			}
			return nil
		}),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, _, err := c.Get("db", "web1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "computed" {
		t.Errorf("db = %v, want computed", got)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "default.yml", "db: a\n")

	c := newCascadeCMDB(t, dir, "prod")

	if ok, err := c.Exists("db", "web1"); err != nil || !ok {
		t.Errorf("Exists(db) = %v, %v; want true", ok, err)
	}
	if ok, err := c.Exists("nope", "web1"); err != nil || ok {
		t.Errorf("Exists(nope) = %v, %v; want false", ok, err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without path strategy expected error")
	}
	if _, err := New(Options{Path: Cascade{Dir: "x"}, MergeBehavior: "bogus"}); err == nil {
		t.Error("New() with unknown merge behavior expected error")
	}
	if _, err := New(Options{
		Path:          Cascade{Dir: "x"},
		Merge:         LeftPrecedent(),
		MergeBehavior: PolicyRightPrecedent,
	}); err == nil {
		t.Error("New() with both Merge and MergeBehavior expected error")
	}
}
