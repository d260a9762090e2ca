package cmdb

import (
	"reflect"
	"testing"
)

func TestRenderPath(t *testing.T) {
	vars := Vars{"environment": "prod", "server": "web1", "port": 22}

	tests := []struct {
		pattern string
		want    string
	}{
		{"cmdb/{environment}/{server}.yml", "cmdb/prod/web1.yml"},
		{"cmdb/{server}-{port}.yml", "cmdb/web1-22.yml"},
		{"cmdb/{unknown}.yml", "cmdb/{unknown}.yml"},
		{"cmdb/default.yml", "cmdb/default.yml"},
	}
	for _, tt := range tests {
		if got := RenderPath(tt.pattern, vars); got != tt.want {
			t.Errorf("RenderPath(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestExpandScalarReference(t *testing.T) {
	tree := map[string]any{
		"app": map[string]any{"role": "web"},
	}
	got := Expand("cmdb/roles/[app.role].yml", tree)
	want := []string{"cmdb/roles/web.yml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
}

func TestExpandSequenceCardinality(t *testing.T) {
	// One scalar and one length-3 sequence reference must yield exactly
	// three paths, the scalar substituted verbatim in all of them.
	tree := map[string]any{
		"app": map[string]any{
			"name":  "shop",
			"tiers": []any{"web", "db", "cache"},
		},
	}
	got := Expand("cmdb/[app.name]/[app.tiers].yml", tree)
	want := []string{
		"cmdb/shop/web.yml",
		"cmdb/shop/db.yml",
		"cmdb/shop/cache.yml",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
}

func TestExpandCrossProduct(t *testing.T) {
	tree := map[string]any{
		"envs":  []any{"prod", "stage"},
		"roles": []any{"web", "db"},
	}
	got := Expand("cmdb/[envs]/[roles].yml", tree)
	want := []string{
		"cmdb/prod/web.yml",
		"cmdb/prod/db.yml",
		"cmdb/stage/web.yml",
		"cmdb/stage/db.yml",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
}

func TestExpandUnresolvedFallback(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		tree    map[string]any
	}{
		{"nil tree", "cmdb/[missing.key].yml", nil},
		{"empty tree", "cmdb/[missing.key].yml", map[string]any{}},
		{"missing segment", "cmdb/[a.b.c].yml", map[string]any{"a": map[string]any{}}},
		{"mapping result", "cmdb/[a].yml", map[string]any{"a": map[string]any{"b": 1}}},
		{"intermediate scalar", "cmdb/[a.b].yml", map[string]any{"a": "scalar"}},
		{"empty sequence", "cmdb/[a].yml", map[string]any{"a": []any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Expand(tt.pattern, tt.tree)
			if !reflect.DeepEqual(got, []string{tt.pattern}) {
				t.Errorf("Expand(%q) = %v, want the pattern unchanged", tt.pattern, got)
			}
		})
	}
}

func TestExpandRepeatedToken(t *testing.T) {
	tree := map[string]any{"role": "web"}
	got := Expand("[role]/[role].yml", tree)
	want := []string{"web/web.yml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expand() = %v, want %v", got, want)
	}
}

func TestCascadeCandidateOrder(t *testing.T) {
	vars := Vars{"environment": "prod", "server": "web1"}

	var got []string
	for _, pattern := range (Cascade{Dir: "cmdb"}).candidates(nil, "", "web1") {
		got = append(got, RenderPath(pattern, vars))
	}
	want := []string{
		"cmdb/prod/web1.yml",
		"cmdb/prod/default.yml",
		"cmdb/web1.yml",
		"cmdb/default.yml",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("cascade = %v, want %v", got, want)
	}
}

func TestCascadeCustomExtension(t *testing.T) {
	pats := Cascade{Dir: "d", Ext: "yaml"}.candidates(nil, "", "")
	if pats[3] != "d/default.yaml" {
		t.Errorf("candidates()[3] = %q, want %q", pats[3], "d/default.yaml")
	}
}
