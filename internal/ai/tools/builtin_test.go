package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentloop/internal/logger"
	"agentloop/internal/store"
)

func TestMain(m *testing.M) {
	logger.SetOutput(nil)
	os.Exit(m.Run())
}

func newTestNoteStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCalculator(t *testing.T) {
	calc, err := NewCalculatorTool()
	require.NoError(t, err)

	tests := []struct {
		expr string
		want string
	}{
		{"2 + 3", "5"},
		{"7 / 2", "3.5"},
		{"(3 + 4) * 2.5", "17.5"},
		{"10 % 3", "1"},
		{"-4 * 0.25", "-1"},
		{"1.5e3 + 1", "1501"},
		{"2 * 3.14", "6.28"},
		{"3.14 + 1", "4.14"},
		{"0.125 * 8", "1"},
		{"10 - 2.75", "7.25"},
		{"0.1 + 0.2", "0.3"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := calc.Evaluate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"1 / 0", "2 +", "foo + 1", `"a" + "b"`} {
		_, err := calc.Evaluate(bad)
		assert.Error(t, err, bad)
	}

	t.Run("Should promote only bare integer literals", func(t *testing.T) {
		assert.Equal(t, "2.0 * 3.14 + 10.0", promoteIntegers("2 * 3.14 + 10"))
		assert.Equal(t, "1.5e3 + 0x1F + 7u", promoteIntegers("1.5e3 + 0x1F + 7u"))
		assert.Equal(t, "x2 + 3.0", promoteIntegers("x2 + 3"))
	})

	out, err := calc.Execute(context.Background(), `{"expression":" 6 * 7 "}`)
	require.NoError(t, err)
	assert.Equal(t, "6 * 7 = 42", out)

	_, err = calc.Execute(context.Background(), `{"expression":""}`)
	assert.Error(t, err)
}

func TestTimeTool(t *testing.T) {
	tool := NewTimeTool()
	tool.now = func() time.Time { return time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC) }

	out, err := tool.Execute(context.Background(), `{"timezone":"Asia/Seoul"}`)
	require.NoError(t, err)
	assert.Equal(t, "The current local time in Asia/Seoul is: 2026-03-05 21:00:00 KST (Thursday)", out)

	out, err = tool.Execute(context.Background(), `{}`)
	require.NoError(t, err)
	assert.Contains(t, out, "in UTC is: 2026-03-05 12:00:00 UTC")

	_, err = tool.Execute(context.Background(), `{"timezone":"Mars/Olympus"}`)
	assert.Error(t, err)
}

func TestWebsiteTool(t *testing.T) {
	article := strings.Repeat("Gophers are burrowing rodents. ", 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		fmt.Fprintf(w, `<html><head><title> Gopher  Facts </title><script>var x = 1;</script></head>
<body><nav>Home | About</nav><main>%s</main><footer>copyright</footer></body></html>`, article)
	}))
	defer srv.Close()

	tool := NewWebsiteTool(5 * time.Second)
	out, err := tool.Execute(context.Background(), fmt.Sprintf(`{"url":%q}`, srv.URL))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Website: 127.0.0.1\nTitle: Gopher Facts\n\n"))
	assert.Contains(t, out, "burrowing rodents")
	assert.NotContains(t, out, "var x")
	assert.NotContains(t, out, "copyright")

	out, err = tool.Execute(context.Background(), fmt.Sprintf(`{"url":%q,"maxCharCount":50}`, srv.URL))
	require.NoError(t, err)
	assert.Equal(t, 50, len([]rune(out)))
	assert.True(t, strings.HasSuffix(out, "..."))

	_, err = tool.Execute(context.Background(), fmt.Sprintf(`{"url":%q}`, srv.URL+"/missing"))
	assert.ErrorContains(t, err, "unexpected status 404")
}

const ddgPage = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&amp;rut=abc">The Go  Programming Language</a>
  <a class="result__snippet">Go is an open source programming language.</a>
</div>
<div class="result">
  <a class="result__a" href="https://pkg.go.dev/">Go Packages</a>
</div>
<div class="result">
  <a class="result__a" href="https://go.dev/blog/">The Go Blog</a>
</div>
</body></html>`

func TestSearchTool(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		if gotQuery == "nothing" {
			io.WriteString(w, `<html><body></body></html>`)
			return
		}
		io.WriteString(w, ddgPage)
	}))
	defer srv.Close()

	tool := NewSearchTool(srv.URL+"/html/", 2, 5*time.Second)

	results, err := tool.Search(context.Background(), "golang", 2)
	require.NoError(t, err)
	assert.Equal(t, "golang", gotQuery)
	require.Len(t, results, 2)
	assert.Equal(t, SearchResult{
		Title:   "The Go Programming Language",
		URL:     "https://go.dev/",
		Snippet: "Go is an open source programming language.",
	}, results[0])
	assert.Equal(t, "https://pkg.go.dev/", results[1].URL)

	out, err := tool.Execute(context.Background(), `{"query":"golang","maxResults":3}`)
	require.NoError(t, err)
	assert.Contains(t, out, "3. The Go Blog")

	out, err = tool.Execute(context.Background(), `{"query":"nothing"}`)
	require.NoError(t, err)
	assert.Equal(t, `No results found for "nothing".`, out)

	_, err = tool.Execute(context.Background(), `{"query":"  "}`)
	assert.Error(t, err)
}

func TestFinalAnswerTool(t *testing.T) {
	tool := NewFinalAnswerTool()
	out, err := tool.Execute(context.Background(), `{"answer":"  42  "}`)
	require.NoError(t, err)
	assert.Equal(t, "42", out)

	_, err = tool.Execute(context.Background(), `{"answer":""}`)
	assert.Error(t, err)
}

func TestNoteTools(t *testing.T) {
	db := newTestNoteStore(t)
	r := NewToolRegistry()
	r.RegisterTool(NewSaveNoteTool(db))
	r.RegisterTool(NewDeleteNoteTool(db))
	r.RegisterTool(NewListNotesTool(db))
	r.RegisterTool(NewSearchNotesTool(db))

	alice := WithCaller(context.Background(), "alice")
	bob := WithCaller(context.Background(), "bob")

	out, err := r.ExecuteTool(alice, "save_note", `{"note":"Prefers metric units"}`)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Note saved with ID: "))
	id := strings.TrimPrefix(out, "Note saved with ID: ")

	out, err = r.ExecuteTool(bob, "list_notes", ``)
	require.NoError(t, err)
	assert.Equal(t, "No notes found", out)

	out, err = r.ExecuteTool(alice, "list_notes", `{}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 notes:")
	assert.Contains(t, out, "Content: Prefers metric units")

	out, err = r.ExecuteTool(alice, "search_notes", `{"query":"METRIC"}`)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = r.ExecuteTool(alice, "search_notes", `{"query":"imperial"}`)
	require.NoError(t, err)
	assert.Equal(t, "No notes found matching query: imperial", out)

	_, err = r.ExecuteTool(bob, "delete_note", fmt.Sprintf(`{"id":%q}`, id))
	assert.ErrorIs(t, err, store.ErrNotOwner)

	assert.Equal(t, "User-specific context from notes:\n- Prefers metric units\n", UserNotesContext(context.Background(), db, "alice"))
	assert.Empty(t, UserNotesContext(context.Background(), db, "bob"))

	out, err = r.ExecuteTool(alice, "delete_note", fmt.Sprintf(`{"id":%q}`, id))
	require.NoError(t, err)
	assert.Contains(t, out, "successfully deleted")
}

func TestTruncateAndClean(t *testing.T) {
	assert.Equal(t, "héllo", TruncateString("héllo", 5))
	assert.Equal(t, "hé...", TruncateString("héllo world", 5))
	assert.Equal(t, "..", TruncateString("hello", 2))
	assert.Equal(t, "", TruncateString("hello", 0))
	assert.Equal(t, "a\n\nb", CleanString("  a\r\n\r\n\r\n\r\nb \n"))
}
