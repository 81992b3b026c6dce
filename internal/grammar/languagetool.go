package grammar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mdnotes/internal/common"
)

// LanguageTool checks text against a self-hosted LanguageTool server
// (POST /v2/check). Matches inside code spans, fenced blocks and URLs are
// dropped so results agree with the RuleEngine.
type LanguageTool struct {
	baseURL  string
	language string
	client   *http.Client
}

func NewLanguageTool(baseURL, language string) *LanguageTool {
	return &LanguageTool{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type ltResponse struct {
	Matches []ltMatch `json:"matches"`
}

type ltMatch struct {
	Message      string `json:"message"`
	Offset       int    `json:"offset"`
	Length       int    `json:"length"`
	Replacements []struct {
		Value string `json:"value"`
	} `json:"replacements"`
}

// Check sends text to the server. Any transport, status or decoding failure
// fails the whole check with common.ErrGrammarCheckFailed.
func (lt *LanguageTool) Check(ctx context.Context, text string) ([]Issue, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("language", lt.language)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lt.baseURL+"/v2/check", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", common.ErrGrammarCheckFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := lt.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: languagetool request: %v", common.ErrGrammarCheckFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: languagetool error (status %d): %s", common.ErrGrammarCheckFailed, resp.StatusCode, string(body))
	}

	var ltResp ltResponse
	if err := json.NewDecoder(resp.Body).Decode(&ltResp); err != nil {
		return nil, fmt.Errorf("%w: decode languagetool response: %v", common.ErrGrammarCheckFailed, err)
	}

	ix := newTextIndex(text)
	maskedText := maskCode(text)
	issues := make([]Issue, 0, len(ltResp.Matches))
	for _, m := range ltResp.Matches {
		// LanguageTool counts offsets in UTF-16 code units.
		start, ok := ix.byteOffsetOfUTF16(m.Offset)
		if !ok {
			return nil, fmt.Errorf("%w: match offset %d outside text", common.ErrGrammarCheckFailed, m.Offset)
		}
		end, ok := ix.byteOffsetOfUTF16(m.Offset + m.Length)
		if !ok || end < start {
			return nil, fmt.Errorf("%w: match length %d outside text", common.ErrGrammarCheckFailed, m.Length)
		}
		if masked(text, maskedText, start, end) {
			continue
		}

		replacements := make([]string, 0, len(m.Replacements))
		for _, r := range m.Replacements {
			replacements = append(replacements, r.Value)
		}
		issues = append(issues, ix.issue(start, end, strings.Join(replacements, ", "), m.Message))
	}
	return issues, nil
}
