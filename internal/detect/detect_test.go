package detect

import "testing"

func TestSQLInjection(t *testing.T) {
	tests := []struct {
		name   string
		query  map[string]string
		body   any
		expect bool
	}{
		{
			name:   "clean query",
			query:  map[string]string{"page": "2", "sort": "name"},
			expect: false,
		},
		{
			name:   "classic OR 1=1 in query",
			query:  map[string]string{"id": "1' OR 1=1--"},
			expect: true,
		},
		{
			name:   "union select in query",
			query:  map[string]string{"q": "x UNION SELECT password FROM users"},
			expect: true,
		},
		{
			name:   "stacked drop statement",
			query:  map[string]string{"name": "a; DROP TABLE users"},
			expect: true,
		},
		{
			name:   "case insensitive match",
			query:  map[string]string{"q": "union select 1"},
			expect: true,
		},
		{
			name:   "sleep based blind injection in body",
			query:  map[string]string{},
			body:   map[string]any{"filter": "1 AND SLEEP(5)"},
			expect: true,
		},
		{
			name:   "xp_cmdshell in nested body",
			query:  nil,
			body:   map[string]any{"payload": map[string]any{"cmd": "exec xp_cmdshell 'dir'"}},
			expect: true,
		},
		{
			name:   "string body scanned too",
			query:  nil,
			body:   "'; DELETE FROM sessions",
			expect: true,
		},
		{
			name:   "clean json body",
			query:  nil,
			body:   map[string]any{"email": "user@example.com"},
			expect: false,
		},
		{
			name:   "nil everything",
			query:  nil,
			body:   nil,
			expect: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SQLInjection(tt.query, tt.body); got != tt.expect {
				t.Errorf("SQLInjection() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestBotUserAgent(t *testing.T) {
	tests := []struct {
		name   string
		ua     string
		expect bool
	}{
		{name: "curl", ua: "curl/8.0.1", expect: true},
		{name: "python requests", ua: "python-requests/2.31.0", expect: true},
		{name: "googlebot", ua: "Mozilla/5.0 (compatible; Googlebot/2.1)", expect: true},
		{name: "langchain agent", ua: "LangChain/0.1.0", expect: true},
		{name: "headless chrome", ua: "Mozilla/5.0 HeadlessChrome/120.0", expect: true},
		{name: "claude agent", ua: "Claude-Web/1.0", expect: true},
		{name: "uppercase CURL", ua: "CURL/7.79", expect: true},
		{name: "regular chrome", ua: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36", expect: false},
		{name: "regular firefox", ua: "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", expect: false},
		{name: "empty", ua: "", expect: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BotUserAgent(tt.ua); got != tt.expect {
				t.Errorf("BotUserAgent(%q) = %v, want %v", tt.ua, got, tt.expect)
			}
		})
	}
}

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want PathCategories
	}{
		{
			name: "docs path",
			path: "/api/docs",
			want: PathCategories{Docs: true},
		},
		{
			name: "swagger is both docs and openapi via swagger.json",
			path: "/swagger.json",
			want: PathCategories{Docs: true, OpenAPI: true},
		},
		{
			name: "openapi spec",
			path: "/openapi.json",
			want: PathCategories{OpenAPI: true},
		},
		{
			name: "admin subtree stays admin only",
			path: "/api/admin/foo",
			want: PathCategories{Admin: true},
		},
		{
			name: "debug is admin and internal",
			path: "/debug/vars",
			want: PathCategories{Admin: true, Internal: true},
		},
		{
			name: "env file probe",
			path: "/.env",
			want: PathCategories{Internal: true},
		},
		{
			name: "case insensitive",
			path: "/API/ADMIN",
			want: PathCategories{Admin: true},
		},
		{
			name: "plain api path",
			path: "/api/users",
			want: PathCategories{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyPath(tt.path); got != tt.want {
				t.Errorf("ClassifyPath(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestPathHelpers(t *testing.T) {
	if !IsDocsPath("/documentation/v2") {
		t.Error("expected /documentation/v2 to be a docs path")
	}
	if !IsOpenAPIPath("/api/schema") {
		t.Error("expected /api/schema to be an openapi path")
	}
	if !IsAdminPath("/dashboard") {
		t.Error("expected /dashboard to be an admin path")
	}
	if !IsInternalPath("/exec") {
		t.Error("expected /exec to be an internal path")
	}
	if IsInternalPath("/api/users") {
		t.Error("expected /api/users not to be internal")
	}
}
