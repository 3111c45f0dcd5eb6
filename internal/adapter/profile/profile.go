package profile

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	_ "embed"

	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

const (
	placeholderQuery = "{query}"
	placeholderStart = "{start}"

	defaultResultsPerPage = 50
)

//go:embed default.md
var defaultProfileContent []byte

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>{{.Name}} profile</title>
</head>
<body>
	<h1>{{.Name}}</h1>
	<p><a href="{{.BaseURL}}">{{.BaseURL}}</a></p>
	{{.Notes}}
</body>
</html>
`

// Selectors holds every DOM selector the gateway and parsers use. List
// fields are ordered primary-first with fallbacks after it.
type Selectors struct {
	ResultsTable   []string `yaml:"results_table"`
	ResultRow      []string `yaml:"result_row"`
	Title          []string `yaml:"title"`
	Author         []string `yaml:"author"`
	Size           []string `yaml:"size"`
	Seeders        []string `yaml:"seeders"`
	Leechers       []string `yaml:"leechers"`
	Category       []string `yaml:"category"`
	UploadDate     []string `yaml:"upload_date"`
	Pagination     []string `yaml:"pagination"`
	LoginForm      string   `yaml:"login_form"`
	UsernameField  string   `yaml:"username_field"`
	PasswordField  string   `yaml:"password_field"`
	SubmitButton   string   `yaml:"submit_button"`
	Captcha        string   `yaml:"captcha"`
	LoggedInMarker string   `yaml:"logged_in_marker"`
}

// Profile describes one tracker site: URLs, paths and selectors come from
// the frontmatter of a markdown profile document, the body is operator notes
// rendered to HTML.
type Profile struct {
	Name           string    `yaml:"name"`
	BaseURL        string    `yaml:"base_url"`
	LoginPath      string    `yaml:"login_path"`
	SearchPath     string    `yaml:"search_path"`
	ResultsPerPage int       `yaml:"results_per_page"`
	Selectors      Selectors `yaml:"selectors"`

	pageHTML []byte
}

// Load reads a profile document from path. A missing file falls back to the
// built-in default profile.
func Load(fs afero.Fs, path string, log *slog.Logger) (*Profile, error) {
	log = log.With(slog.String("item", "Profile"))

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("cannot read profile file: %w", err)
		}

		log.Info("Profile file not found, using built-in default", slog.String("path", path))
		data = defaultProfileContent
	}

	return Parse(data)
}

// Parse decodes a profile document: yaml frontmatter into the Profile,
// markdown body into the rendered operator page.
func Parse(data []byte) (*Profile, error) {
	md := goldmark.New(
		goldmark.WithExtensions(&frontmatter.Extender{}),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	var body bytes.Buffer

	ctx := parser.NewContext()
	if err := md.Convert(data, &body, parser.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("cannot render profile document: %w", err)
	}

	fm := frontmatter.Get(ctx)
	if fm == nil {
		return nil, fmt.Errorf("profile document has no frontmatter")
	}

	var p Profile
	if err := fm.Decode(&p); err != nil {
		return nil, fmt.Errorf("cannot decode profile frontmatter: %w", err)
	}

	if p.BaseURL == "" {
		return nil, fmt.Errorf("profile has no base_url")
	}
	// The search flow indexes into these lists, so an empty one must be
	// rejected here rather than surface as a panic mid-search.
	if len(p.Selectors.ResultsTable) == 0 {
		return nil, fmt.Errorf("profile has no selectors.results_table")
	}
	if len(p.Selectors.ResultRow) == 0 {
		return nil, fmt.Errorf("profile has no selectors.result_row")
	}
	if p.ResultsPerPage <= 0 {
		p.ResultsPerPage = defaultResultsPerPage
	}

	tmpl, err := template.New("profile").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("cannot parse profile page template: %w", err)
	}

	var page bytes.Buffer
	err = tmpl.Execute(&page, struct {
		Name    string
		BaseURL string
		Notes   template.HTML
	}{
		Name:    p.Name,
		BaseURL: p.BaseURL,
		Notes:   template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot build profile page: %w", err)
	}

	p.pageHTML = page.Bytes()

	return &p, nil
}

// Default returns the built-in profile.
func Default() *Profile {
	p, err := Parse(defaultProfileContent)
	if err != nil {
		panic(err)
	}

	return p
}

func (p *Profile) LoginURL() string {
	return p.BaseURL + p.LoginPath
}

// SearchURL builds the results URL for a query and a 1-based page number.
func (p *Profile) SearchURL(query string, page int) string {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * p.ResultsPerPage

	path := strings.ReplaceAll(p.SearchPath, placeholderQuery, url.QueryEscape(query))
	path = strings.ReplaceAll(path, placeholderStart, strconv.Itoa(start))

	return p.BaseURL + path
}

// AbsoluteURL resolves a possibly relative href against the site base.
func (p *Profile) AbsoluteURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}

	return p.BaseURL + href
}

// PageHTML is the rendered operator page for this profile.
func (p *Profile) PageHTML() []byte {
	return p.pageHTML
}
