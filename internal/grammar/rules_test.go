package grammar

import (
	"context"
	"testing"

	"mdnotes/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findIssue(issues []Issue, original string) (Issue, bool) {
	for _, issue := range issues {
		if issue.Original == original {
			return issue, true
		}
	}
	return Issue{}, false
}

func TestRuleEngineSpelling(t *testing.T) {
	issues, err := NewRuleEngine().Check(context.Background(), "Hello.\nI recieve it.")
	require.NoError(t, err)

	issue, ok := findIssue(issues, "recieve")
	require.True(t, ok, "issues: %+v", issues)
	assert.Equal(t, 1, issue.Line)
	assert.Equal(t, 2, issue.Column)
	assert.Equal(t, 9, issue.Offset)
	assert.Equal(t, 7, issue.Length)
	assert.Equal(t, "receive", issue.Suggestion)
	assert.NotEmpty(t, issue.Explanation)
}

func TestRuleEngineRepeatedWord(t *testing.T) {
	issues, err := NewRuleEngine().Check(context.Background(), "This is is fine.")
	require.NoError(t, err)

	issue, ok := findIssue(issues, "is is")
	require.True(t, ok, "issues: %+v", issues)
	assert.Equal(t, 5, issue.Offset)
	assert.Equal(t, 5, issue.Length)
	assert.Equal(t, "is", issue.Suggestion)
}

func TestRuleEngineWhitespace(t *testing.T) {
	issues, err := NewRuleEngine().Check(context.Background(), "one  two\nHard break  \n| a  | b |")
	require.NoError(t, err)
	require.Len(t, issues, 1)

	assert.Equal(t, "  ", issues[0].Original)
	assert.Equal(t, 3, issues[0].Offset)
	assert.Equal(t, " ", issues[0].Suggestion)
}

func TestRuleEngineWhitespaceAdjacentGaps(t *testing.T) {
	issues, err := NewRuleEngine().Check(context.Background(), "a  b  c  d")
	require.NoError(t, err)
	require.Len(t, issues, 3)

	for i, offset := range []int{1, 4, 7} {
		assert.Equal(t, " ", issues[i].Suggestion)
		assert.Equal(t, offset, issues[i].Offset)
		assert.Equal(t, "  ", issues[i].Original)
	}
}

func TestRuleEngineSpaceBeforePunctuation(t *testing.T) {
	issues, err := NewRuleEngine().Check(context.Background(), "Hello , world ; see ![image](x.png)")
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, " ,", issues[0].Original)
	assert.Equal(t, ",", issues[0].Suggestion)
	assert.Equal(t, 5, issues[0].Offset)
	assert.Equal(t, " ;", issues[1].Original)
}

func TestRuleEngineSentenceStart(t *testing.T) {
	issues, err := NewRuleEngine().Check(context.Background(), "It works. then it stops. See e.g. this.\n1. item one\nWait... maybe")
	require.NoError(t, err)
	require.Len(t, issues, 1)

	assert.Equal(t, "t", issues[0].Original)
	assert.Equal(t, "T", issues[0].Suggestion)
	assert.Equal(t, 10, issues[0].Offset)
}

func TestRuleEngineArticles(t *testing.T) {
	issues, err := NewRuleEngine().Check(context.Background(), "Take a apple and an banana, a university, an hour, an FBI agent.")
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, "a", issues[0].Original)
	assert.Equal(t, "an", issues[0].Suggestion)
	assert.Equal(t, 5, issues[0].Offset)

	assert.Equal(t, "an", issues[1].Original)
	assert.Equal(t, "a", issues[1].Suggestion)
}

func TestRuleEngineArticlesAccentedVowel(t *testing.T) {
	issues, err := NewRuleEngine().Check(context.Background(), "This is an Élan moment, not a élan.")
	require.NoError(t, err)
	require.Len(t, issues, 1)

	assert.Equal(t, "a", issues[0].Original)
	assert.Equal(t, "an", issues[0].Suggestion)
}

func TestRuleEngineIgnoresCode(t *testing.T) {
	text := "Use `recieve` here.\n```\nthis is is code\n```\nSee https://example.com/recieve too."
	issues, err := NewRuleEngine().Check(context.Background(), text)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestRuleEngineNoIssuesIsEmptyNotNil(t *testing.T) {
	issues, err := NewRuleEngine().Check(context.Background(), "# Notes\n\nEverything here is fine.")
	require.NoError(t, err)
	assert.NotNil(t, issues)
	assert.Empty(t, issues)
}

func TestRuleEngineOrdersByPosition(t *testing.T) {
	issues, err := NewRuleEngine().Check(context.Background(), "We we recieve a apple.")
	require.NoError(t, err)
	require.Len(t, issues, 3)

	for i := 1; i < len(issues); i++ {
		assert.LessOrEqual(t, issues[i-1].Offset, issues[i].Offset)
	}
}

func TestRuleEngineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	issues, err := NewRuleEngine().Check(ctx, "text")
	assert.ErrorIs(t, err, common.ErrGrammarCheckFailed)
	assert.Nil(t, issues)
}

func TestRuleEnginePanickingRuleFailsWholeCheck(t *testing.T) {
	e := &RuleEngine{rules: []Rule{
		{ID: "OK", check: repeatedWordRule},
		{ID: "BROKEN", check: func(string) []finding { panic("boom") }},
	}}

	issues, err := e.Check(context.Background(), "the the")
	assert.ErrorIs(t, err, common.ErrGrammarCheckFailed)
	assert.Nil(t, issues)
}
