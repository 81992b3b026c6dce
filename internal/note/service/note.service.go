package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mdnotes/internal/common"
	"mdnotes/internal/grammar"
	"mdnotes/internal/markdown"
	"mdnotes/internal/note/model"
	"mdnotes/internal/note/repository"
	"mdnotes/pkg/logger"
	"mdnotes/pkg/metrics"
)

const (
	EngineLocal  = "local"
	EngineRemote = "remote"
)

// Notifier is told about every note that was stored.
type Notifier interface {
	NoteCreated(note model.NoteSummary)
}

// RemoteChecker is the language-model backed engine.
type RemoteChecker interface {
	grammar.Checker
	Correct(ctx context.Context, text string) (*grammar.Correction, error)
}

// NoteService runs the ingestion pipeline (title, decode, render, sanitize,
// store) and routes grammar requests to the local or remote engine.
type NoteService struct {
	Repo      repository.Store
	Decoder   *markdown.Decoder
	Renderer  *markdown.Renderer
	Sanitizer *markdown.Sanitizer
	Local     grammar.Checker
	Remote    RemoteChecker // nil when no provider is configured
	Notifier  Notifier      // optional
	Now       func() time.Time
}

func NewNoteService(repo repository.Store, decoder *markdown.Decoder, local grammar.Checker, remote RemoteChecker, notifier Notifier) *NoteService {
	return &NoteService{
		Repo:      repo,
		Decoder:   decoder,
		Renderer:  markdown.NewRenderer(),
		Sanitizer: markdown.NewSanitizer(),
		Local:     local,
		Remote:    remote,
		Notifier:  notifier,
		Now:       time.Now,
	}
}

// UploadNote stores a new note built from an uploaded file. Nothing is
// written when any step before the store fails.
func (s *NoteService) UploadNote(ctx context.Context, filename string, data []byte) (note *model.Note, err error) {
	defer func() { metrics.NotesUploaded.WithLabelValues(metrics.Result(err)).Inc() }()

	title, err := markdown.ExtractTitle(filename)
	if err != nil {
		return nil, err
	}
	content, err := s.Decoder.Decode(data)
	if err != nil {
		return nil, err
	}
	rendered, err := s.Renderer.Render(content)
	if err != nil {
		return nil, fmt.Errorf("render note: %w", err)
	}

	saved, err := s.Repo.Save(ctx, &model.Note{
		Title:       title,
		Content:     content,
		HTMLContent: s.Sanitizer.Sanitize(rendered),
		CreatedAt:   s.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("save note: %w", err)
	}

	logger.Sugar.Infof("Stored note %d (%q, %d bytes)", saved.ID, saved.Title, len(data))
	if s.Notifier != nil {
		s.Notifier.NoteCreated(saved.Summary())
	}
	return saved, nil
}

func (s *NoteService) GetNote(ctx context.Context, id int64) (*model.Note, error) {
	return s.Repo.FindByID(ctx, id)
}

// GetNoteHTML returns the HTML rendered when the note was uploaded.
func (s *NoteService) GetNoteHTML(ctx context.Context, id int64) (string, error) {
	n, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return n.HTMLContent, nil
}

func (s *NoteService) GetNoteRaw(ctx context.Context, id int64) (string, error) {
	n, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return n.Content, nil
}

func (s *NoteService) ListNotes(ctx context.Context) ([]model.NoteSummary, error) {
	return s.Repo.ListSummaries(ctx)
}

func (s *NoteService) ExportNotes(ctx context.Context) ([]model.Note, error) {
	return s.Repo.FindAll(ctx)
}

// CheckGrammarLocal runs the rule engine. Blank text has no issues.
func (s *NoteService) CheckGrammarLocal(ctx context.Context, text string) (issues []grammar.Issue, err error) {
	defer func() { metrics.GrammarChecks.WithLabelValues(EngineLocal, metrics.Result(err)).Inc() }()

	if strings.TrimSpace(text) == "" {
		return []grammar.Issue{}, nil
	}
	issues, err = s.Local.Check(ctx, text)
	if err != nil {
		if !errors.Is(err, common.ErrGrammarCheckFailed) {
			err = fmt.Errorf("%w: %w", common.ErrGrammarCheckFailed, err)
		}
		return nil, err
	}
	return issues, nil
}

// CheckGrammarRemote decodes an uploaded file and sends it to the remote engine.
func (s *NoteService) CheckGrammarRemote(ctx context.Context, data []byte) ([]grammar.Issue, error) {
	text, err := s.Decoder.Decode(data)
	if err != nil {
		metrics.GrammarChecks.WithLabelValues(EngineRemote, metrics.Result(err)).Inc()
		return nil, err
	}
	c, err := s.correct(ctx, text)
	if err != nil {
		return nil, err
	}
	return c.Issues, nil
}

// CorrectText returns the remote engine's corrected text together with its issues.
func (s *NoteService) CorrectText(ctx context.Context, text string) (*grammar.Correction, error) {
	return s.correct(ctx, text)
}

// CheckNoteGrammar runs the chosen engine over a stored note's Markdown.
func (s *NoteService) CheckNoteGrammar(ctx context.Context, id int64, engine string) ([]grammar.Issue, error) {
	if engine != EngineLocal && engine != EngineRemote {
		return nil, common.ErrUnknownEngine
	}
	n, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if engine == EngineLocal {
		return s.CheckGrammarLocal(ctx, n.Content)
	}
	c, err := s.correct(ctx, n.Content)
	if err != nil {
		return nil, err
	}
	return c.Issues, nil
}

func (s *NoteService) correct(ctx context.Context, text string) (c *grammar.Correction, err error) {
	start := time.Now()
	defer func() {
		metrics.GrammarChecks.WithLabelValues(EngineRemote, metrics.Result(err)).Inc()
	}()

	if strings.TrimSpace(text) == "" {
		return nil, common.ErrEmptyContent
	}
	if s.Remote == nil {
		return nil, fmt.Errorf("%w: no provider configured", common.ErrRemoteServiceUnavailable)
	}

	c, err = s.Remote.Correct(ctx, text)
	metrics.RemoteGrammarDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return c, nil
}
