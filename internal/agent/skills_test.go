package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillsLoader_ListAndLoad(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, workspace, "github", "---\nname: github\ndescription: Work with GitHub\n---\nUse the gh CLI.")
	writeSkill(t, workspace, "plain", "No front matter at all.")

	loader := NewSkillsLoader(workspace, nil)
	skills := loader.List()
	require.Len(t, skills, 2)

	assert.Equal(t, "Use the gh CLI.", loader.Load("github"))
	assert.Equal(t, "No front matter at all.", loader.Load("plain"))
	assert.Empty(t, loader.Load("missing"))
}

func TestSkillsLoader_EnabledFilter(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, workspace, "a", "body a")
	writeSkill(t, workspace, "b", "body b")

	loader := NewSkillsLoader(workspace, []string{"b"})
	skills := loader.List()
	require.Len(t, skills, 1)
	assert.Equal(t, "b", skills[0].Name)
}

func TestSkillsLoader_FrontMatterMeta(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, workspace, "tone", "---\nname: voice\ndescription: House style\nalways: true\n---\nBe brief.")

	loader := NewSkillsLoader(workspace, nil)
	skills := loader.List()
	require.Len(t, skills, 1)
	assert.Equal(t, "voice", skills[0].Meta.Name)
	assert.Equal(t, "House style", skills[0].Meta.Description)
	assert.True(t, skills[0].Meta.Always)
}

func TestSkillsLoader_SummaryExcludesAlways(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, workspace, "always-on", "---\nalways: true\n---\nInlined.")
	writeSkill(t, workspace, "on-demand", "---\ndescription: Loaded when needed\n---\nBody.")

	loader := NewSkillsLoader(workspace, nil)
	summary := loader.Summary()
	assert.Contains(t, summary, "on-demand: Loaded when needed")
	assert.NotContains(t, summary, "always-on")

	always := loader.AlwaysContent()
	assert.Contains(t, always, "Inlined.")
	assert.NotContains(t, always, "Body.")
}

func TestSkillsLoader_MissingDir(t *testing.T) {
	loader := NewSkillsLoader(t.TempDir(), nil)
	assert.Empty(t, loader.List())
	assert.Empty(t, loader.Summary())
}
