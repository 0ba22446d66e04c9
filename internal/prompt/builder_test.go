package prompt_test

import (
	"strings"
	"testing"

	"storybook-server/internal/models"
	"storybook-server/internal/prompt"

	"github.com/stretchr/testify/assert"
)

// storyRequest возвращает заполненный запрос для тестов построителей.
func storyRequest() *models.StoryRequest {
	return &models.StoryRequest{
		Genre:       "fantasy",
		Protagonist: "a brave fox named Rin",
		Setting:     "an ancient cedar forest",
		Conflict:    "a storm that steals the stars",
		Tone:        "adventurous",
		PageCount:   5,
		TextLength:  models.TextLengthMedium,
		ArtStyle:    "childrens-book",
	}
}

func TestBuildStoryPrompt_Deterministic(t *testing.T) {
	req := storyRequest()
	first := prompt.BuildStoryPrompt(req)
	second := prompt.BuildStoryPrompt(req)
	assert.Equal(t, first, second)
}

func TestBuildStoryPrompt_ContainsRequestFields(t *testing.T) {
	req := storyRequest()
	got := prompt.BuildStoryPrompt(req)

	assert.Contains(t, got, "Create a adventurous fantasy story with exactly 5 pages.")
	assert.Contains(t, got, "- Main character: a brave fox named Rin")
	assert.Contains(t, got, "- Setting: an ancient cedar forest")
	assert.Contains(t, got, "- Conflict/Challenge: a storm that steals the stars")
	assert.Contains(t, got, "\"pages\": [")
	// Без inspiration строка не появляется вовсе.
	assert.NotContains(t, got, "Additional inspiration")
}

func TestBuildStoryPrompt_DensityPerTextLength(t *testing.T) {
	cases := []struct {
		length models.TextLength
		phrase string
	}{
		{models.TextLengthShort, "1-2 sentences"},
		{models.TextLengthMedium, "1-2 paragraphs"},
		{models.TextLengthLong, "2-3 paragraphs"},
	}
	for _, tc := range cases {
		req := storyRequest()
		req.TextLength = tc.length
		got := prompt.BuildStoryPrompt(req)
		assert.Contains(t, got, "- Text length per page: "+tc.phrase)
		assert.Contains(t, got, "Page 1 content ("+tc.phrase+")")
	}
}

func TestBuildStoryPrompt_InspirationIncluded(t *testing.T) {
	req := storyRequest()
	req.Inspiration = "friendship and courage"
	got := prompt.BuildStoryPrompt(req)
	assert.Contains(t, got, "- Additional inspiration/themes: friendship and courage")
}

func TestBuildCoverImagePrompt(t *testing.T) {
	req := storyRequest()
	got := prompt.BuildCoverImagePrompt(req, "The Storm of Stars")
	assert.Contains(t, got, `"The Storm of Stars"`)
	assert.Contains(t, got, "a brave fox named Rin")
	assert.Contains(t, got, "an ancient cedar forest")
	assert.Contains(t, got, "movie poster")
}

func TestBuildPageImagePrompt_PicksActionAndNoun(t *testing.T) {
	req := storyRequest()
	text := "Rin was running through the trees when a dragon rose above the ridge."
	got := prompt.BuildPageImagePrompt(text, 1, req)

	assert.Contains(t, got, "a brave fox named Rin")
	assert.Contains(t, got, "running")
	assert.Contains(t, got, "with a dragon")
	assert.Contains(t, got, "in an ancient cedar forest")
	assert.Contains(t, got, "childrens-book style")
	// Тон adventurous дает свой дескриптор.
	assert.Contains(t, got, "dynamic wide-angle energy")
	assert.NotContains(t, got, "wide establishing shot")
}

func TestBuildPageImagePrompt_FirstPageEstablishingShot(t *testing.T) {
	req := storyRequest()
	got := prompt.BuildPageImagePrompt("A quiet morning in the forest.", 0, req)
	assert.Contains(t, got, "wide establishing shot")
}

func TestBuildPageImagePrompt_Deterministic(t *testing.T) {
	req := storyRequest()
	text := "They were climbing toward the tower, hiding from the storm."
	assert.Equal(t,
		prompt.BuildPageImagePrompt(text, 2, req),
		prompt.BuildPageImagePrompt(text, 2, req),
	)
}

func TestBuildPageImagePrompt_UnknownToneFallsBack(t *testing.T) {
	req := storyRequest()
	req.Tone = "melancholic"
	got := prompt.BuildPageImagePrompt("Nothing matched here.", 3, req)
	assert.Contains(t, got, "rich atmospheric detail")
}

func TestFallbackPageImagePrompt(t *testing.T) {
	req := storyRequest()
	got := prompt.FallbackPageImagePrompt(req)
	assert.Equal(t, "Beautiful an ancient cedar forest landscape in childrens-book style, atmospheric and detailed", got)

	req.ArtStyle = ""
	assert.Contains(t, prompt.FallbackPageImagePrompt(req), "in illustration style")
}

func TestSystemStoryPrompt_MentionsJSONContract(t *testing.T) {
	assert.True(t, strings.Contains(prompt.SystemStoryPrompt, `"title"`))
	assert.True(t, strings.Contains(prompt.SystemStoryPrompt, `"pages"`))
}
