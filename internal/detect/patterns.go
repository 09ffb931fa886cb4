package detect

import "regexp"

// Pattern tables are compiled once at init and never mutated, so they are
// safe to share across handler goroutines without locking.

var sqlInjectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)SELECT `),
	regexp.MustCompile(`(?i)DROP `),
	regexp.MustCompile(`(?i)INSERT `),
	regexp.MustCompile(`(?i)UPDATE .*SET`),
	regexp.MustCompile(`(?i)DELETE FROM`),
	regexp.MustCompile(`(?i)'--`),
	regexp.MustCompile(`(?i)' OR`),
	regexp.MustCompile(`(?i)1\s*=\s*1`),
	regexp.MustCompile(`(?i)/\*`),
	regexp.MustCompile(`(?i)\*/`),
	regexp.MustCompile(`(?i)UNION SELECT`),
	regexp.MustCompile(`(?i); DROP`),
	regexp.MustCompile(`(?i); DELETE`),
	regexp.MustCompile(`(?i)EXEC(\s|\()`),
	regexp.MustCompile(`(?i)xp_cmdshell`),
	regexp.MustCompile(`(?i)WAITFOR DELAY`),
	regexp.MustCompile(`(?i)BENCHMARK\(`),
	regexp.MustCompile(`(?i)SLEEP\(`),
}

// Substrings matched against a lowercased User-Agent. Covers classic
// crawlers, HTTP clients, LLM agent frameworks, and browser automation.
var botIndicators = []string{
	"bot", "crawler", "spider", "scraper",
	"python", "axios", "curl", "wget", "fetch",
	"postman", "insomnia", "httpie",
	"gpt", "claude", "openai", "anthropic",
	"langchain", "autogpt", "agentgpt",
	"selenium", "puppeteer", "playwright", "headless", "phantom",
}

var docsPaths = []string{"/docs", "/documentation", "/api-docs", "/swagger"}

var openAPIPaths = []string{"/openapi", "/openapi.json", "/openapi.yaml", "/swagger.json", "/api/schema"}

var adminPaths = []string{"/admin", "/api/admin", "/dashboard", "/internal", "/debug", "/config"}

var internalPaths = []string{"/internal", "/debug", "/shell", "/exec", "/eval", "/.env", "/config"}
