package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mdnotes/internal/common"
	"mdnotes/internal/grammar"
	"mdnotes/internal/markdown"
	"mdnotes/internal/note/model"
	"mdnotes/internal/note/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	events []model.NoteSummary
}

func (r *recordingNotifier) NoteCreated(note model.NoteSummary) {
	r.events = append(r.events, note)
}

type failingStore struct {
	*repository.MemoryStore
}

func (failingStore) Save(context.Context, *model.Note) (*model.Note, error) {
	return nil, errors.New("connection refused")
}

type stubChecker struct {
	issues []grammar.Issue
	err    error
}

func (s stubChecker) Check(context.Context, string) ([]grammar.Issue, error) {
	return s.issues, s.err
}

type stubRemote struct {
	stubChecker
	correction *grammar.Correction
	texts      []string
}

func (s *stubRemote) Correct(_ context.Context, text string) (*grammar.Correction, error) {
	s.texts = append(s.texts, text)
	return s.correction, s.err
}

type staticGenerator string

func (g staticGenerator) Generate(context.Context, string) (string, error) {
	return string(g), nil
}

var fixedNow = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*NoteService, *repository.MemoryStore, *recordingNotifier) {
	t.Helper()
	store := repository.NewMemoryStore()
	notifier := &recordingNotifier{}
	svc := NewNoteService(store, markdown.NewDecoder(markdown.UTF8), grammar.NewRuleEngine(), nil, notifier)
	svc.Now = func() time.Time { return fixedNow }
	return svc, store, notifier
}

func TestUploadNote(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	note, err := svc.UploadNote(ctx, "notes.md", []byte("# Hello\n\nWorld"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), note.ID)
	assert.Equal(t, "notes", note.Title)
	assert.Equal(t, "# Hello\n\nWorld", note.Content)
	assert.Contains(t, note.HTMLContent, "<h1>Hello</h1>")
	assert.Contains(t, note.HTMLContent, "<p>World</p>")
	assert.Equal(t, fixedNow, note.CreatedAt)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, model.NoteSummary{ID: 1, Title: "notes", CreatedAt: fixedNow}, notifier.events[0])
}

func TestUploadNoteEscapesTitle(t *testing.T) {
	svc, _, _ := newTestService(t)

	note, err := svc.UploadNote(context.Background(), `<b>"x"</b>.md`, []byte("text"))
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;&#34;x&#34;&lt;/b&gt;", note.Title)
}

func TestUploadNoteWithoutFilenameUsesPlaceholder(t *testing.T) {
	svc, _, _ := newTestService(t)

	note, err := svc.UploadNote(context.Background(), "", []byte("text"))
	require.NoError(t, err)
	assert.Equal(t, markdown.PlaceholderTitle, note.Title)
}

func TestUploadNoteRejectsWithoutStoring(t *testing.T) {
	cases := map[string]struct {
		filename string
		data     []byte
		want     error
	}{
		"wrong extension":     {"notes.txt", []byte("# Hi"), common.ErrInvalidFileType},
		"upper-case suffix":   {"notes.MD", []byte("# Hi"), common.ErrInvalidFileType},
		"invalid utf-8 bytes": {"notes.md", []byte{0xff, 0xfe, 0xfd, 'a'}, common.ErrDecode},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, store, notifier := newTestService(t)

			_, err := svc.UploadNote(context.Background(), tc.filename, tc.data)
			assert.ErrorIs(t, err, tc.want)

			all, _ := store.FindAll(context.Background())
			assert.Empty(t, all)
			assert.Empty(t, notifier.events)
		})
	}
}

func TestUploadNoteStoreFailure(t *testing.T) {
	svc, _, notifier := newTestService(t)
	svc.Repo = failingStore{repository.NewMemoryStore()}

	_, err := svc.UploadNote(context.Background(), "a.md", []byte("x"))
	require.Error(t, err)
	assert.False(t, common.IsClientError(err))
	assert.Empty(t, notifier.events)
}

func TestUploadNoteSanitizesAdversarialMarkdown(t *testing.T) {
	svc, _, _ := newTestService(t)
	inputs := []string{
		"<script>alert(1)</script>",
		"<img src=x onerror=alert(1)>",
		"[click](javascript:alert(1))",
		"[data](data:text/html;base64,PHNjcmlwdD4=)",
		"<a href=\"javascript:alert(1)\">x</a>",
		"<iframe src=\"https://evil.example\"></iframe>\n\n**bold** <svg onload=alert(1)>",
		"| a | b |\n|---|---|\n| <script>x</script> | [y](JaVaScRiPt:alert(1)) |",
		"<javascript:alert(1)>",
		"set onerror=alert(1) on images",
		"<https://ok.example/?q=\"onerror=1>",
	}

	for _, in := range inputs {
		note, err := svc.UploadNote(context.Background(), "x.md", []byte(in))
		require.NoError(t, err)
		html := strings.ToLower(note.HTMLContent)
		assert.NotContains(t, html, "<script", in)
		assert.NotContains(t, html, "onerror=", in)
		assert.NotContains(t, html, "javascript:", in)
	}
}

func TestNoteReadsRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	content := "# Café\n\n* naïve\n* 😀\n"

	note, err := svc.UploadNote(ctx, "unicode.md", []byte(content))
	require.NoError(t, err)

	raw, err := svc.GetNoteRaw(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, content, raw)

	html, err := svc.GetNoteHTML(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, note.HTMLContent, html)

	full, err := svc.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, note, full)
}

func TestNoteReadsUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetNoteHTML(ctx, 404)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = svc.GetNoteRaw(ctx, 404)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = svc.GetNote(ctx, 404)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListAndExportNotes(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"b.md", "a.md"} {
		_, err := svc.UploadNote(ctx, name, []byte("body of "+name))
		require.NoError(t, err)
	}

	summaries, err := svc.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "b", summaries[0].Title)
	assert.Equal(t, "a", summaries[1].Title)

	notes, err := svc.ExportNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "body of a.md", notes[1].Content)
}

func TestCheckGrammarLocal(t *testing.T) {
	svc, _, _ := newTestService(t)

	issues, err := svc.CheckGrammarLocal(context.Background(), "This is is a test.")
	require.NoError(t, err)
	require.NotEmpty(t, issues)
	assert.Equal(t, "is is", issues[0].Original)
}

func TestCheckGrammarLocalBlankText(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.Local = stubChecker{err: errors.New("must not be called")}

	issues, err := svc.CheckGrammarLocal(context.Background(), " \n\t")
	require.NoError(t, err)
	assert.NotNil(t, issues)
	assert.Empty(t, issues)
}

func TestCheckGrammarLocalFailureIsNotEmptyResult(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.Local = stubChecker{err: errors.New("engine crashed")}

	issues, err := svc.CheckGrammarLocal(context.Background(), "Some text.")
	assert.ErrorIs(t, err, common.ErrGrammarCheckFailed)
	assert.Nil(t, issues)
}

func TestCheckGrammarRemote(t *testing.T) {
	svc, _, _ := newTestService(t)
	want := []grammar.Issue{{Line: 0, Offset: 5, Length: 3, Original: "teh", Suggestion: "the", Explanation: "Spelling."}}
	remote := &stubRemote{correction: &grammar.Correction{CorrectedText: "Fix the typo", Issues: want}}
	svc.Remote = remote

	issues, err := svc.CheckGrammarRemote(context.Background(), []byte("Fix teh typo"))
	require.NoError(t, err)
	assert.Equal(t, want, issues)
	assert.Equal(t, []string{"Fix teh typo"}, remote.texts)
}

func TestCheckGrammarRemoteExtractsJSONFromProse(t *testing.T) {
	svc, _, _ := newTestService(t)
	reply := `Sure! Here is the result:
{"correctedText":"I have an apple.","issues":[
 {"line":0,"offset":7,"length":1,"original":"a","suggestion":"an","explanation":"Use an before vowels."},
 {"line":0,"offset":9,"length":5,"original":"aple","suggestion":"apple","explanation":"Spelling."}]}
Hope this helps.`
	svc.Remote = grammar.NewRemoteEngine(staticGenerator(reply))

	issues, err := svc.CheckGrammarRemote(context.Background(), []byte("I have a aple."))
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "a", issues[0].Original)
	assert.Equal(t, "aple", issues[1].Original)
}

func TestCheckGrammarRemoteReplyWithoutBrace(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.Remote = grammar.NewRemoteEngine(staticGenerator("I could not process that."))

	issues, err := svc.CheckGrammarRemote(context.Background(), []byte("text"))
	assert.ErrorIs(t, err, common.ErrRemoteResponseMalformed)
	assert.Nil(t, issues)
}

func TestCheckGrammarRemoteFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("decode error", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		svc.Remote = &stubRemote{}
		_, err := svc.CheckGrammarRemote(ctx, []byte{0xc3})
		assert.ErrorIs(t, err, common.ErrDecode)
	})

	t.Run("no provider", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.CheckGrammarRemote(ctx, []byte("text"))
		assert.ErrorIs(t, err, common.ErrRemoteServiceUnavailable)
	})

	t.Run("blank file", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		remote := &stubRemote{}
		svc.Remote = remote
		_, err := svc.CheckGrammarRemote(ctx, []byte("   \n"))
		assert.ErrorIs(t, err, common.ErrEmptyContent)
		assert.Empty(t, remote.texts)
	})

	t.Run("service error", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		svc.Remote = &stubRemote{stubChecker: stubChecker{err: common.ErrRemoteServiceUnavailable}}
		_, err := svc.CheckGrammarRemote(ctx, []byte("text"))
		assert.ErrorIs(t, err, common.ErrRemoteServiceUnavailable)
	})
}

func TestCorrectText(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.Remote = &stubRemote{correction: &grammar.Correction{CorrectedText: "Hello.", Issues: []grammar.Issue{}}}

	c, err := svc.CorrectText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello.", c.CorrectedText)
	assert.NotNil(t, c.Issues)
}

func TestCheckNoteGrammar(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	remote := &stubRemote{correction: &grammar.Correction{Issues: []grammar.Issue{{Original: "x"}}}}
	svc.Remote = remote

	note, err := svc.UploadNote(ctx, "n.md", []byte("Its a a test."))
	require.NoError(t, err)

	local, err := svc.CheckNoteGrammar(ctx, note.ID, EngineLocal)
	require.NoError(t, err)
	assert.NotEmpty(t, local)

	fromRemote, err := svc.CheckNoteGrammar(ctx, note.ID, EngineRemote)
	require.NoError(t, err)
	assert.Equal(t, []grammar.Issue{{Original: "x"}}, fromRemote)
	assert.Equal(t, []string{"Its a a test."}, remote.texts)

	_, err = svc.CheckNoteGrammar(ctx, note.ID, "hunspell")
	assert.ErrorIs(t, err, common.ErrUnknownEngine)

	_, err = svc.CheckNoteGrammar(ctx, 77, EngineLocal)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
