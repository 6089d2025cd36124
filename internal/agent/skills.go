package agent

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkillMeta is the optional YAML front matter of a SKILL.md document.
type SkillMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Always      bool   `yaml:"always"`
}

// SkillInfo describes a discovered skill.
type SkillInfo struct {
	Name string
	Path string
	Meta SkillMeta
}

// SkillsLoader discovers skills under <workspace>/skills/<name>/SKILL.md.
type SkillsLoader struct {
	SkillsDir string
	Enabled   []string // empty means all discovered skills are enabled
}

// NewSkillsLoader creates a SkillsLoader for a workspace.
func NewSkillsLoader(workspace string, enabled []string) *SkillsLoader {
	return &SkillsLoader{
		SkillsDir: filepath.Join(workspace, "skills"),
		Enabled:   enabled,
	}
}

// List returns all enabled skills.
func (s *SkillsLoader) List() []SkillInfo {
	entries, err := os.ReadDir(s.SkillsDir)
	if err != nil {
		return nil
	}

	var skills []SkillInfo
	for _, e := range entries {
		if !e.IsDir() || !s.isEnabled(e.Name()) {
			continue
		}
		path := filepath.Join(s.SkillsDir, e.Name(), "SKILL.md")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		info := SkillInfo{Name: e.Name(), Path: path}
		if data, err := os.ReadFile(path); err == nil {
			info.Meta = parseFrontMatter(string(data))
		}
		if info.Meta.Name == "" {
			info.Meta.Name = e.Name()
		}
		skills = append(skills, info)
	}
	return skills
}

// Load returns a skill's content with front matter stripped, or "".
func (s *SkillsLoader) Load(name string) string {
	data, err := os.ReadFile(filepath.Join(s.SkillsDir, name, "SKILL.md"))
	if err != nil {
		return ""
	}
	_, body := splitFrontMatter(string(data))
	return body
}

// Summary lists enabled skills as one line each, for the system prompt.
// Always-on skills are excluded since their full content is inlined.
func (s *SkillsLoader) Summary() string {
	var lines []string
	for _, skill := range s.List() {
		if skill.Meta.Always {
			continue
		}
		line := "- " + skill.Meta.Name
		if skill.Meta.Description != "" {
			line += ": " + skill.Meta.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// AlwaysContent returns the concatenated bodies of always-on skills.
func (s *SkillsLoader) AlwaysContent() string {
	var parts []string
	for _, skill := range s.List() {
		if !skill.Meta.Always {
			continue
		}
		if body := s.Load(skill.Name); body != "" {
			parts = append(parts, "## Skill: "+skill.Meta.Name+"\n\n"+body)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (s *SkillsLoader) isEnabled(name string) bool {
	if len(s.Enabled) == 0 {
		return true
	}
	for _, e := range s.Enabled {
		if e == name {
			return true
		}
	}
	return false
}

func parseFrontMatter(content string) SkillMeta {
	raw, _ := splitFrontMatter(content)
	var meta SkillMeta
	if raw != "" {
		yaml.Unmarshal([]byte(raw), &meta)
	}
	return meta
}

// splitFrontMatter separates a leading "---" YAML block from the body.
func splitFrontMatter(content string) (frontMatter, body string) {
	trimmed := strings.TrimLeft(content, "\ufeff")
	if !strings.HasPrefix(trimmed, "---\n") {
		return "", content
	}
	rest := trimmed[4:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", content
	}
	body = rest[end+4:]
	body = strings.TrimPrefix(body, "\n")
	return rest[:end], body
}
