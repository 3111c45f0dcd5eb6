package profile

import (
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestParse(t *testing.T) {
	src := []byte(`---
name: "test tracker"
base_url: "https://tr.example.net"
login_path: "/login.php"
search_path: "/tracker.php?nm={query}&start={start}"
results_per_page: 25
selectors:
  results_table: ["#results"]
  result_row: ["tr.row"]
  login_form: "form#login"
---

# Notes

Operator notes body.
`)

	p, err := Parse(src)
	require.NoError(t, err)
	require.Equal(t, "test tracker", p.Name)
	require.Equal(t, "https://tr.example.net", p.BaseURL)
	require.Equal(t, []string{"#results"}, p.Selectors.ResultsTable)
	require.Equal(t, "form#login", p.Selectors.LoginForm)
	require.Contains(t, string(p.PageHTML()), "Operator notes body.")
}

func TestParseNoBaseURL(t *testing.T) {
	_, err := Parse([]byte("---\nname: broken\n---\nbody\n"))
	require.Error(t, err)
}

func TestParseMissingSelectors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "no selectors at all",
			src: `---
name: t
base_url: "https://tr.example.net"
---
x
`,
		},
		{
			name: "no result_row",
			src: `---
name: t
base_url: "https://tr.example.net"
selectors:
  results_table: ["#results"]
---
x
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			require.Error(t, err)
		})
	}
}

func TestSearchURL(t *testing.T) {
	p, err := Parse([]byte(`---
name: t
base_url: "https://tr.example.net"
search_path: "/tracker.php?nm={query}&start={start}"
results_per_page: 50
selectors:
  results_table: ["#results"]
  result_row: ["tr.row"]
---
x
`))
	require.NoError(t, err)

	require.Equal(t, "https://tr.example.net/tracker.php?nm=pink+floyd&start=0", p.SearchURL("pink floyd", 1))
	require.Equal(t, "https://tr.example.net/tracker.php?nm=pink+floyd&start=100", p.SearchURL("pink floyd", 3))
	// Page numbers below one clamp to the first page.
	require.Equal(t, "https://tr.example.net/tracker.php?nm=x&start=0", p.SearchURL("x", 0))
}

func TestLoadFallsBackToDefault(t *testing.T) {
	fs := afero.NewMemMapFs()

	p, err := Load(fs, "/missing/profile.md", testLogger())
	require.NoError(t, err)
	require.Equal(t, "default", p.Name)
	require.NotEmpty(t, p.Selectors.ResultsTable)
}

func TestLoadFromFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := `---
name: custom
base_url: "https://x.example.org"
selectors:
  results_table: ["#results"]
  result_row: ["tr.row"]
---
notes
`
	require.NoError(t, afero.WriteFile(fs, "/etc/tracksearch/profile.md", []byte(content), 0o644))

	p, err := Load(fs, "/etc/tracksearch/profile.md", testLogger())
	require.NoError(t, err)
	require.Equal(t, "custom", p.Name)
}

func TestAbsoluteURL(t *testing.T) {
	p := Default()
	p.BaseURL = "https://tr.example.net"

	require.Equal(t, "https://tr.example.net/forum/viewtopic.php?t=1", p.AbsoluteURL("/forum/viewtopic.php?t=1"))
	require.Equal(t, "https://tr.example.net/viewtopic.php?t=2", p.AbsoluteURL("viewtopic.php?t=2"))
	require.Equal(t, "https://other.example.org/t", p.AbsoluteURL("https://other.example.org/t"))
	require.Equal(t, "", p.AbsoluteURL(""))
}
